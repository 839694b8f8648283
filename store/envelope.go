package store

import (
	"encoding/json"

	"golang.org/x/xerrors"
)

// ErrBadFormat is returned when persisted data does not carry the expected
// identifier and version.
var ErrBadFormat = xerrors.New("bad format")

// Form names one kind of persisted record.
type Form struct {
	Ident   string
	Version int
}

var (
	RegistryForm = Form{Ident: "WIREG", Version: 2}
	QueueForm    = Form{Ident: "WIQUE", Version: 1}
	CrawledForm  = Form{Ident: "WIPAG", Version: 1}
)

type envelope struct {
	Ident   string          `json:"ident"`
	Version int             `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps the JSON form of v in an envelope tagged with form.
func Encode(form Form, v interface{}) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, xerrors.Errorf("encode %s: %w", form.Ident, err)
	}
	return json.Marshal(envelope{Ident: form.Ident, Version: form.Version, Payload: payload})
}

// Decode unwraps data into v. Anything that is not an envelope of exactly
// form is rejected with ErrBadFormat.
func Decode(data []byte, form Form, v interface{}) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return xerrors.Errorf("decode %s: %v: %w", form.Ident, err, ErrBadFormat)
	}
	if env.Ident != form.Ident || env.Version != form.Version {
		return xerrors.Errorf("decode %s v%d: found %q v%d: %w", form.Ident, form.Version, env.Ident, env.Version, ErrBadFormat)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return xerrors.Errorf("decode %s payload: %v: %w", form.Ident, err, ErrBadFormat)
	}
	return nil
}
