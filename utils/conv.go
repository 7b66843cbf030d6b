package utils

import (
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/text/transform"

	"github.com/mogaika/anim_decompressor/config"
)

// BytesToString decodes a zero terminated (or full length) string stored in the configured charmap.
func BytesToString(bs []byte) (string, error) {
	n := bytes.IndexByte(bs, 0)
	if n < 0 {
		n = len(bs)
	}

	s, _, err := transform.Bytes(config.GetEncoding().NewDecoder(), bs[:n])
	if err != nil {
		return "", errors.Wrapf(err, "Failed to decode %q", bs[:n])
	}
	return string(s), nil
}

// StringToBytes encodes s into the configured charmap.
func StringToBytes(s string, nilTerminate bool) ([]byte, error) {
	bs, _, err := transform.Bytes(config.GetEncoding().NewEncoder(), []byte(s))
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to encode %q", s)
	}
	if nilTerminate {
		bs = append(bs, 0)
	}
	return bs, nil
}
