package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxRequestBody caps protobuf and JSON bodies alike. Terminal payloads
// are a card uid or a heartbeat, both well under 1 KiB.
const maxRequestBody = 4096

var errBodyTooLarge = errors.New("request body too large")

// Terminals on constrained hardware may send their payload as a
// google.protobuf.Struct instead of JSON; the field names are the same.
func isProtobuf(r *http.Request) bool {
	return isProtobufType(r.Header.Get("Content-Type"))
}

func wantsProtobuf(r *http.Request) bool {
	return isProtobuf(r) || isProtobufType(r.Header.Get("Accept"))
}

func isProtobufType(ct string) bool {
	ct = strings.TrimSpace(strings.Split(ct, ";")[0])
	return ct == "application/x-protobuf" || ct == "application/protobuf"
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxRequestBody {
		return nil, errBodyTooLarge
	}
	return body, nil
}

func readProto(r *http.Request, msg proto.Message) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	return proto.Unmarshal(body, msg)
}

// decodeBody fills v from a JSON body or a protobuf Struct body. Unknown
// JSON fields are rejected.
func decodeBody(r *http.Request, v any) error {
	if isProtobuf(r) {
		var s structpb.Struct
		if err := readProto(r, &s); err != nil {
			return fmt.Errorf("decode protobuf: %w", err)
		}
		// Struct maps onto the same json tags the JSON path uses.
		b, err := json.Marshal(s.AsMap())
		if err != nil {
			return err
		}
		return json.Unmarshal(b, v)
	}

	body, err := readBody(r)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeStruct encodes v as a protobuf Struct using its json field names.
func writeStruct(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
		return
	}
	writeProto(w, status, s)
}

func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
