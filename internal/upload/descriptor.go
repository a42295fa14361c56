package upload

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"cdbs/internal/services"
)

// Descriptor is one backend-allocated upload slot.
type Descriptor struct {
	Filename       string
	DestinationURL string
	FileID         uuid.UUID
}

// PendingFile pairs a descriptor with the local source it will upload.
type PendingFile struct {
	Descriptor
	Source Source
}

// Pair matches descriptors to sources by filename. Allocation responses are
// unordered, so position is never used. Names are compared in Unicode NFC so a
// name typed on one platform matches the same name echoed back by the backend.
// The result follows the order of sources.
func Pair(descriptors []Descriptor, sources []Source) ([]PendingFile, error) {
	byName := make(map[string]Descriptor, len(descriptors))
	seenIDs := make(map[uuid.UUID]string, len(descriptors))
	for _, d := range descriptors {
		if err := d.validate(); err != nil {
			return nil, err
		}
		key := matchKey(d.Filename)
		if _, dup := byName[key]; dup {
			return nil, services.Wrap(services.ErrValidation, "upload", "pair", fmt.Sprintf("duplicate descriptor for %q", d.Filename), nil)
		}
		if other, dup := seenIDs[d.FileID]; dup {
			return nil, services.Wrap(services.ErrValidation, "upload", "pair", fmt.Sprintf("file id %s allocated to both %q and %q", d.FileID, other, d.Filename), nil)
		}
		byName[key] = d
		seenIDs[d.FileID] = d.Filename
	}

	files := make([]PendingFile, 0, len(sources))
	used := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if src == nil {
			return nil, services.Wrap(services.ErrValidation, "upload", "pair", "nil source", nil)
		}
		key := matchKey(src.Name())
		if _, dup := used[key]; dup {
			return nil, services.Wrap(services.ErrValidation, "upload", "pair", fmt.Sprintf("duplicate source %q", src.Name()), nil)
		}
		d, ok := byName[key]
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "upload", "pair", fmt.Sprintf("no descriptor allocated for %q", src.Name()), nil)
		}
		used[key] = struct{}{}
		files = append(files, PendingFile{Descriptor: d, Source: src})
	}
	if len(files) != len(byName) {
		var missing []string
		for key, d := range byName {
			if _, ok := used[key]; !ok {
				missing = append(missing, d.Filename)
			}
		}
		return nil, services.Wrap(services.ErrValidation, "upload", "pair", fmt.Sprintf("no source for descriptors %s", strings.Join(missing, ", ")), nil)
	}
	return files, nil
}

func (d Descriptor) validate() error {
	if strings.TrimSpace(d.Filename) == "" {
		return services.Wrap(services.ErrValidation, "upload", "pair", "descriptor without filename", nil)
	}
	if d.FileID == uuid.Nil {
		return services.Wrap(services.ErrValidation, "upload", "pair", fmt.Sprintf("descriptor for %q has no file id", d.Filename), nil)
	}
	parsed, err := url.Parse(d.DestinationURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return services.Wrap(services.ErrValidation, "upload", "pair", fmt.Sprintf("descriptor for %q has invalid destination", d.Filename), err)
	}
	return nil
}

func matchKey(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
