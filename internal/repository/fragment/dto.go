package fragment

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/kailas-cloud/knowchain/internal/domain"
	"github.com/kailas-cloud/knowchain/internal/repository/collection"
)

// buildHashFields converts a fragment and its vector into a flat map for HSET.
func buildHashFields(f domain.Fragment, vector []float32) map[string]string {
	return map[string]string{
		collection.FieldText:   f.Text,
		collection.FieldSource: f.Source,
		collection.FieldPage:   strconv.Itoa(f.Page),
		collection.FieldOffset: strconv.Itoa(f.Offset),
		collection.FieldSeq:    strconv.Itoa(f.Seq),
		collection.FieldVector: vectorToBytes(vector),
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
