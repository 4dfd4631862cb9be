package comm

import (
	"encoding/json"

	"github.com/pkg/errors"
	"google.golang.org/grpc/encoding"
)

// codecName is the content subtype under which replicas
// exchange messages, sent as "application/grpc+json".
const codecName = "json"

// jsonCodec marshals gRPC messages as JSON. Graph states
// define their own JSON layout, every other message is a
// plain struct.
type jsonCodec struct{}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Marshal fulfills the Marshal() function
// of the gRPC codec interface.
func (jsonCodec) Marshal(v interface{}) ([]byte, error) {

	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %T", v)
	}

	return data, nil
}

// Unmarshal fulfills the Unmarshal() function
// of the gRPC codec interface.
func (jsonCodec) Unmarshal(data []byte, v interface{}) error {

	err := json.Unmarshal(data, v)
	if err != nil {
		return errors.Wrapf(err, "failed to unmarshal %T", v)
	}

	return nil
}

// Name returns the content subtype of this codec.
func (jsonCodec) Name() string {
	return codecName
}
