package srplsh

import (
	"bytes"
	"encoding/gob"
)

// Compile time checks to ensure Hasher satisfies the gob interfaces.
var (
	_ gob.GobEncoder = (*Hasher)(nil)
	_ gob.GobDecoder = (*Hasher)(nil)
)

// GobEncode serializes the hasher (hyperplanes and signatures) for snapshots.
func (h *Hasher) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	if err := encoder.Encode(h.n); err != nil {
		return nil, err
	}

	if err := encoder.Encode(h.dim); err != nil {
		return nil, err
	}

	if err := encoder.Encode(h.proj); err != nil {
		return nil, err
	}

	if err := encoder.Encode(h.signatures); err != nil {
		return nil, err
	}

	if err := encoder.Encode(h.opts); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// GobDecode restores a hasher from snapshot bytes.
func (h *Hasher) GobDecode(data []byte) error {
	decoder := gob.NewDecoder(bytes.NewBuffer(data))

	if err := decoder.Decode(&h.n); err != nil {
		return err
	}

	if err := decoder.Decode(&h.dim); err != nil {
		return err
	}

	if err := decoder.Decode(&h.proj); err != nil {
		return err
	}

	if err := decoder.Decode(&h.signatures); err != nil {
		return err
	}

	if err := decoder.Decode(&h.opts); err != nil {
		return err
	}

	h.words = (h.opts.K + 63) / 64
	h.table = popcountTable()

	return nil
}
