// Package teamchat provides the real-time team messaging core for Go: a
// WebSocket messaging server with team-scoped rooms, durable message
// persistence, history replay on join, and a reconnecting client connector.
//
// Works both as a library for embedding in your application AND as a
// standalone service (cmd/teamchat-server).
//
// # Features
//
//   - Team-scoped rooms with join/leave/broadcast and per-room locking
//   - Durable append-only message store (MySQL, PostgreSQL, SQLite via Relica)
//   - History replay to joining sessions, gap-free relative to live broadcasts
//   - Connection sessions with an explicit Connecting → Open → Closed lifecycle
//   - Idle session cutoff via ping/pong and read deadlines
//   - Client connector with bounded exponential reconnect backoff and
//     automatic room rejoin
//   - Declarative handshake origin allow-list
//   - Pluggable architecture: bring your own Logger, MessageStore, identity
//
// # Quick Start
//
// Embed the server:
//
//	store := memory.NewMessageStore()
//	server, err := teamchat.NewServer(
//	    teamchat.WithStore(store),
//	    teamchat.WithServerLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.HandleFunc("/ws", server.ServeWS)
//
// Connect a client:
//
//	connector := client.NewConnector("ws://localhost:8080/ws",
//	    client.WithSender("u1", "Alice"),
//	    client.WithLogger(logger),
//	)
//	if err := connector.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	messages, _ := connector.JoinRoom("T1")
//	for msg := range messages {
//	    fmt.Printf("%s: %s\n", msg.SenderName, msg.Body)
//	}
//	_ = connector.Publish("T1", "hello")
//
// # Message Flow
//
//  1. JOIN
//     Client → join frame → registry adds the session to the room
//     → store history fetched under the room's publish lock
//     → history snapshot replayed to the joining session only
//
//  2. PUBLISH
//     Client → publish frame → payload validated
//     → store append assigns ID and timestamp
//     → registry broadcasts the persisted message to every room member
//
//  3. DISCONNECT
//     Transport close or idle timeout → session moves to Closed
//     → all room memberships released atomically
//
// Message order per room is the store's ID order: append and broadcast are
// serialized per room, so every member observes the same sequence.
//
// # Delivery Semantics
//
// The server is exactly-once per accepted publish: a message is broadcast
// only after it is durably persisted, and only once. The client connector is
// at-most-once: publishing while disconnected fails fast instead of queueing,
// and a reconnecting client recovers missed messages from history replay
// rather than a resend path.
//
// # Database Schema
//
// One table (created via the embedded migration in migrations/):
//
//	teamchat_team_message - persisted room messages
//
// Supports MySQL, PostgreSQL, and SQLite via Relica adapters. Table prefix
// "teamchat_".
package teamchat
