// Copyright 2024-2026 Aiku AI

// Package bridge implements the orchestration engine that relays messages
// between Telegram chats and Signal groups via signal-cli.
//
// Incoming platform events are normalized into Messages and handed to the
// Router, which either queues them for delivery or, for Telegram chats with
// no Signal group yet, buffers them while a single provisioning worker
// creates the group. Two pipelines drain the delivery queues: one sends
// toward Signal over JSON-RPC, the other toward Telegram over the bot API.
// The chat-to-group mapping is persisted as a whole-file JSON document.
package bridge
