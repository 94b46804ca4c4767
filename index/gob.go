package index

import (
	"bytes"
	"encoding/gob"
)

// Compile time checks to ensure Dataset satisfies the gob interfaces.
var (
	_ gob.GobEncoder = (*Dataset)(nil)
	_ gob.GobDecoder = (*Dataset)(nil)
)

// GobEncode serializes the vectors for snapshots. Norms are derived state
// and are recomputed on decode.
func (d *Dataset) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	if err := encoder.Encode(d.vectors); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// GobDecode restores a dataset from snapshot bytes.
func (d *Dataset) GobDecode(data []byte) error {
	decoder := gob.NewDecoder(bytes.NewBuffer(data))

	var vectors [][]float32
	if err := decoder.Decode(&vectors); err != nil {
		return err
	}

	restored, err := NewDataset(vectors)
	if err != nil {
		return err
	}

	*d = *restored

	return nil
}
