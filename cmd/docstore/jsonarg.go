package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// parseJSONArg decodes a JSON flag value. Objects decode to primitive.D so
// key order survives into sort specs, $group ids and projections.
func parseJSONArg(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	v, err := decodeOrdered(dec)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid JSON: trailing data after value")
	}
	return v, nil
}

func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		d := primitive.D{}
		for dec.More() {
			key, err := dec.Token()
			if err != nil {
				return nil, err
			}
			v, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			d = append(d, primitive.E{Key: key.(string), Value: v})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return d, nil
	case '[':
		a := primitive.A{}
		for dec.More() {
			v, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			a = append(a, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %q", delim)
}

// optionalJSON decodes s, or returns nil for an empty flag
func optionalJSON(s string) (any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return parseJSONArg(s)
}

// specArg accepts either a JSON object or a plain space-separated spec
// such as "name -age"
func specArg(s string) (any, error) {
	if strings.HasPrefix(strings.TrimSpace(s), "{") {
		return parseJSONArg(s)
	}
	return s, nil
}
