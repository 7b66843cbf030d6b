package config

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

var (
	encodingMu sync.RWMutex
	// Clip names are stored in a single byte charmap.
	currentCharMap = charmap.Windows1252
)

func findCharmap(name string) *charmap.Charmap {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok && strings.EqualFold(cm.String(), name) {
			return cm
		}
	}
	return nil
}

// SetEncoding selects the charmap of clip names, names match case insensitively.
func SetEncoding(name string) error {
	cm := findCharmap(name)
	if cm == nil {
		return errors.Errorf("Failed to find encoding %q", name)
	}
	encodingMu.Lock()
	currentCharMap = cm
	encodingMu.Unlock()
	return nil
}

func ListEncodings() []string {
	list := make([]string, 0)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	sort.Strings(list)
	return list
}

func GetEncoding() *charmap.Charmap {
	encodingMu.RLock()
	defer encodingMu.RUnlock()
	return currentCharMap
}
