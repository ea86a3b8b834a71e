// Copyright 2024-2026 Aiku AI

package signalrpc

import "encoding/json"

// MessageInfo is a normalized incoming Signal group message.
type MessageInfo struct {
	GroupID       string
	Text          string
	SenderName    string
	SenderNumber  string
	SenderUUID    string
	Timestamp     int64
	AttachmentIDs []string
}

// Sender returns the identifier to address receipts to, preferring the UUID.
func (m MessageInfo) Sender() string {
	if m.SenderUUID != "" {
		return m.SenderUUID
	}
	return m.SenderNumber
}

type event struct {
	Envelope struct {
		SourceName   string `json:"sourceName"`
		SourceNumber string `json:"sourceNumber"`
		SourceUUID   string `json:"sourceUuid"`
		Timestamp    int64  `json:"timestamp"`
		DataMessage  *struct {
			Message   string `json:"message"`
			GroupInfo *struct {
				GroupID string `json:"groupId"`
			} `json:"groupInfo"`
			Attachments []struct {
				ID string `json:"id"`
			} `json:"attachments"`
		} `json:"dataMessage"`
	} `json:"envelope"`
}

// parseEvent extracts a group data message from a raw SSE payload. It returns
// (nil, nil) for events the bridge does not care about: receipts, typing and
// sync envelopes, direct messages, and group events without an ID.
func parseEvent(data []byte) (*MessageInfo, error) {
	var evt event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	dm := evt.Envelope.DataMessage
	if dm == nil {
		return nil, nil
	}
	if dm.GroupInfo == nil || dm.GroupInfo.GroupID == "" {
		return nil, nil
	}

	info := &MessageInfo{
		GroupID:      dm.GroupInfo.GroupID,
		Text:         dm.Message,
		SenderName:   evt.Envelope.SourceName,
		SenderNumber: evt.Envelope.SourceNumber,
		SenderUUID:   evt.Envelope.SourceUUID,
		Timestamp:    evt.Envelope.Timestamp,
	}
	for _, att := range dm.Attachments {
		if att.ID != "" {
			info.AttachmentIDs = append(info.AttachmentIDs, att.ID)
		}
	}
	return info, nil
}
