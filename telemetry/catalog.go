package telemetry

import (
	"encoding/binary"
	"fmt"
)

// VarDesc describes one variable of the data buffers.
type VarDesc struct {
	Name        string
	Desc        string
	Unit        string
	Type        VarType
	Offset      int // byte offset within a data buffer
	Count       int // 1 for scalars
	CountAsTime bool
	Index       int // position in the descriptor table

	// Err is set when the descriptor cannot be decoded (unknown type or
	// non-positive count). The rest of the catalog is unaffected.
	Err error
}

// Usable reports whether values of d can be decoded.
func (d *VarDesc) Usable() bool { return d.Err == nil }

// Size returns the number of bytes the variable occupies in a buffer.
func (d *VarDesc) Size() int { return d.Type.Size() * d.Count }

// Catalog is the name-indexed table of variable descriptors of a session.
// It is immutable once built.
type Catalog struct {
	byName map[string]*VarDesc
	vars   []*VarDesc

	// header fields the catalog was built from
	update    int32
	numVars   int32
	varOffset int32
}

// BuildCatalog parses the descriptor table the header points at. When a
// name occurs more than once the last descriptor wins and takes the earlier
// one's place in Vars order.
func BuildCatalog(mem Memory, h *Header) (*Catalog, error) {
	table := make([]byte, int(h.NumVars)*VarHeaderSize)
	if _, err := mem.ReadAt(table, int64(h.VarHeaderOffset)); err != nil {
		return nil, fmt.Errorf("%w: variable table: %v", ErrMalformed, err)
	}

	c := &Catalog{
		byName:    make(map[string]*VarDesc, h.NumVars),
		vars:      make([]*VarDesc, 0, h.NumVars),
		update:    h.SessionInfoUpdate,
		numVars:   h.NumVars,
		varOffset: h.VarHeaderOffset,
	}
	pos := make(map[string]int, h.NumVars)

	for i := 0; i < int(h.NumVars); i++ {
		d := parseVarHeader(table[i*VarHeaderSize:(i+1)*VarHeaderSize], i)
		if d.Name == "" {
			continue
		}
		if p, ok := pos[d.Name]; ok {
			c.vars[p] = d
		} else {
			pos[d.Name] = len(c.vars)
			c.vars = append(c.vars, d)
		}
		c.byName[d.Name] = d
	}
	return c, nil
}

func parseVarHeader(b []byte, index int) *VarDesc {
	d := &VarDesc{
		Type:        VarType(int32(binary.LittleEndian.Uint32(b[0:]))),
		Offset:      int(int32(binary.LittleEndian.Uint32(b[4:]))),
		Count:       int(int32(binary.LittleEndian.Uint32(b[8:]))),
		CountAsTime: b[12] != 0,
		Name:        fixedText(b[16:48]),
		Desc:        fixedText(b[48:112]),
		Unit:        fixedText(b[112:144]),
		Index:       index,
	}
	switch {
	case !d.Type.Valid():
		d.Err = &VarError{Name: d.Name, Err: fmt.Errorf("%w %d", ErrUnknownType, int32(d.Type))}
	case d.Count < 1:
		d.Err = &VarError{Name: d.Name, Err: fmt.Errorf("%w: count %d", ErrMalformed, d.Count)}
	}
	return d
}

// Lookup returns the descriptor of the named variable.
func (c *Catalog) Lookup(name string) (*VarDesc, error) {
	d, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: variable %q", ErrNotFound, name)
	}
	return d, nil
}

// Vars returns every descriptor in table order, unusable ones included.
func (c *Catalog) Vars() []*VarDesc {
	out := make([]*VarDesc, len(c.vars))
	copy(out, c.vars)
	return out
}

// Len returns the number of distinct variable names.
func (c *Catalog) Len() int { return len(c.vars) }

// Stale reports whether h describes a different session than the one the
// catalog was built from.
func (c *Catalog) Stale(h *Header) bool {
	return h.SessionInfoUpdate != c.update || h.NumVars != c.numVars || h.VarHeaderOffset != c.varOffset
}
