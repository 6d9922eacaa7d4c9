package mixlib

import (
	"github.com/pkg/errors"
	"go.dedis.ch/protobuf"
)

// EncodePreShuffleData serializes precomputed shuffle state for the local
// side channel.
func (s *Suite) EncodePreShuffleData(pre *PreShuffleData) ([]byte, error) {
	data, err := protobuf.Encode(pre)
	if err != nil {
		return nil, errors.Wrap(err, "encoding pre-shuffle data")
	}
	return data, nil
}

// DecodePreShuffleData deserializes precomputed shuffle state, rebuilding
// scalars and points through the suite.
func (s *Suite) DecodePreShuffleData(data []byte) (*PreShuffleData, error) {
	cons := make(protobuf.Constructors)
	cons[tScalar] = func() interface{} { return s.Scalar() }
	cons[tPoint] = func() interface{} { return s.Point() }
	pre := &PreShuffleData{}
	if err := protobuf.DecodeWithConstructors(data, pre, cons); err != nil {
		return nil, errors.Wrap(err, "decoding pre-shuffle data")
	}
	return pre, nil
}
