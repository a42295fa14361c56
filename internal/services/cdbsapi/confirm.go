package cdbsapi

import (
	"context"

	"github.com/google/uuid"

	"cdbs/internal/logging"
	"cdbs/internal/upload"
)

const confirmQuery = `mutation ConfirmUploadCompleted($fileUuids: [UUID!]!) {
  uploadCompleted(fileUuids: $fileUuids)
}`

var _ upload.Confirmer = (*Client)(nil)

// ConfirmUploads tells the backend the files are stored and returns how many
// it accepted. An empty list is sent as such.
func (c *Client) ConfirmUploads(ctx context.Context, ids []uuid.UUID) (int, error) {
	fileUUIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		fileUUIDs = append(fileUUIDs, id.String())
	}
	var confirmed int
	if err := c.execute(ctx, "uploadCompleted", confirmQuery, map[string]any{"fileUuids": fileUUIDs}, "uploadCompleted", &confirmed); err != nil {
		return 0, err
	}
	logging.WithContext(ctx, c.logger).Info("uploads confirmed",
		logging.Int("sent", len(ids)),
		logging.Int("confirmed", confirmed),
		logging.String(logging.FieldEventType, "uploads_confirmed"),
	)
	return confirmed, nil
}
