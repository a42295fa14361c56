package cdbsapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"cdbs/internal/logging"
	"cdbs/internal/services"
	"cdbs/internal/upload"
)

// TargetKind names the kind of catalog object files are attached to.
type TargetKind string

const (
	TargetComponent    TargetKind = "component"
	TargetStandard     TargetKind = "standard"
	TargetService      TargetKind = "service"
	TargetModification TargetKind = "modification"
	TargetFileset      TargetKind = "fileset"
)

// Target identifies the catalog object receiving an upload.
type Target struct {
	Kind TargetKind
	ID   uuid.UUID
}

func (t Target) String() string {
	return string(t.Kind) + ":" + t.ID.String()
}

// ParseTarget parses "<kind>:<uuid>", e.g. "component:4b7a...".
func ParseTarget(value string) (Target, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return Target{}, services.Wrap(services.ErrValidation, "cdbsapi", "parse target", fmt.Sprintf("%q must look like <kind>:<uuid>", value), nil)
	}
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return Target{}, services.Wrap(services.ErrValidation, "cdbsapi", "parse target", fmt.Sprintf("invalid uuid %q", id), err)
	}
	t := Target{Kind: TargetKind(strings.ToLower(strings.TrimSpace(kind))), ID: parsed}
	if _, ok := allocations[t.Kind]; !ok {
		return Target{}, services.Wrap(services.ErrValidation, "cdbsapi", "parse target", fmt.Sprintf("unknown target kind %q (want one of %s)", kind, strings.Join(TargetKinds(), ", ")), nil)
	}
	return t, nil
}

// TargetKinds lists the supported target kinds.
func TargetKinds() []string {
	return []string{
		string(TargetComponent),
		string(TargetStandard),
		string(TargetService),
		string(TargetModification),
		string(TargetFileset),
	}
}

type allocation struct {
	mutation  string
	inputType string
	variable  string
	idField   string
}

var allocations = map[TargetKind]allocation{
	TargetComponent:    {"uploadComponentFiles", "IptComponentFilesData", "iptComponentFilesData", "componentUuid"},
	TargetStandard:     {"uploadStandardFiles", "IptStandardFilesData", "iptStandardFilesData", "standardUuid"},
	TargetService:      {"uploadServiceFiles", "IptServiceFilesData", "iptServiceFilesData", "serviceUuid"},
	TargetModification: {"uploadModificationFiles", "IptModificationFilesData", "iptModificationFilesData", "modificationUuid"},
	TargetFileset:      {"uploadFilesToFileset", "IptModificationFileFromFilesetData", "iptModificationFileFromFilesetData", "filesetUuid"},
}

func (a allocation) query() string {
	return fmt.Sprintf("mutation Upload($%s: %s!) {\n  %s(args: $%s) {\n    fileUuid\n    filename\n    uploadUrl\n  }\n}",
		a.variable, a.inputType, a.mutation, a.variable)
}

type uploadFile struct {
	FileUUID  string `json:"fileUuid"`
	Filename  string `json:"filename"`
	UploadURL string `json:"uploadUrl"`
}

// RequestUploads asks the backend for one upload slot per filename on target.
// The returned descriptors are in backend order; pair them by filename.
func (c *Client) RequestUploads(ctx context.Context, target Target, filenames []string, commitMsg string) ([]upload.Descriptor, error) {
	alloc, ok := allocations[target.Kind]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "cdbsapi", "allocate", fmt.Sprintf("unknown target kind %q", target.Kind), nil)
	}
	if len(filenames) == 0 {
		return nil, nil
	}

	input := map[string]any{
		"filenames":   filenames,
		alloc.idField: target.ID.String(),
		"commitMsg":   commitMsg,
	}
	var files []uploadFile
	if err := c.execute(ctx, alloc.mutation, alloc.query(), map[string]any{alloc.variable: input}, alloc.mutation, &files); err != nil {
		return nil, err
	}

	descriptors := make([]upload.Descriptor, 0, len(files))
	for _, f := range files {
		id, err := uuid.Parse(f.FileUUID)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "cdbsapi", "allocate", fmt.Sprintf("backend returned invalid file uuid %q for %q", f.FileUUID, f.Filename), err)
		}
		descriptors = append(descriptors, upload.Descriptor{
			Filename:       f.Filename,
			DestinationURL: f.UploadURL,
			FileID:         id,
		})
	}
	c.logger.Info("upload slots allocated",
		logging.String("target", target.String()),
		logging.Int("requested", len(filenames)),
		logging.Int("allocated", len(descriptors)),
		logging.String(logging.FieldEventType, "uploads_allocated"),
	)
	return descriptors, nil
}
