package siyuan

import (
	"encoding/json"
	"fmt"
)

// normalizeTransactionResult reduces the data payload of a write transaction
// to the created block id. Server versions disagree on the shape: an object
// with an id, an array of such objects, an {ids:[…]} bag, or a bare id
// string. Anything else is ErrProtocol.
func normalizeTransactionResult(data json.RawMessage) (string, error) {
	if len(data) == 0 || string(data) == "null" {
		return "", fmt.Errorf("%w: empty transaction result", ErrProtocol)
	}

	// Bare id string.
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		if id == "" {
			return "", fmt.Errorf("%w: empty id string", ErrProtocol)
		}
		return id, nil
	}

	// Object: {id} or {ids:[…]} or a transaction op list {doOperations:[{id}]}.
	var obj struct {
		ID           string            `json:"id"`
		IDs          []string          `json:"ids"`
		DoOperations []json.RawMessage `json:"doOperations"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.ID != "" {
			return obj.ID, nil
		}
		if len(obj.IDs) > 0 && obj.IDs[0] != "" {
			return obj.IDs[0], nil
		}
		if len(obj.DoOperations) > 0 {
			return normalizeTransactionResult(obj.DoOperations[0])
		}
	}

	// Array of objects: take the first element.
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return normalizeTransactionResult(arr[0])
	}

	return "", fmt.Errorf("%w: transaction result %s", ErrProtocol, truncateForError(data))
}

func truncateForError(data []byte) string {
	const max = 120
	if len(data) > max {
		return string(data[:max]) + "…"
	}
	return string(data)
}
