package store

const schemaIdentityAndContacts = `
CREATE TABLE local_identity (
	peer_id TEXT NOT NULL PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE contacts (
	peer_id TEXT NOT NULL PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	ed25519_public_key BLOB NOT NULL,
	x25519_public_key BLOB NOT NULL,
	added_at INTEGER NOT NULL
);
`

const schemaMessages = `
CREATE TABLE messages (
	message_id TEXT NOT NULL PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	sender TEXT NOT NULL,
	recipient TEXT NOT NULL,
	content_ciphertext BLOB NOT NULL,
	content_type TEXT NOT NULL,
	reply_to TEXT,
	nonce_counter INTEGER NOT NULL,
	lamport_clock INTEGER NOT NULL,
	sent_at INTEGER NOT NULL,
	edited_at INTEGER,
	deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_messages_conversation ON messages(conversation_id, lamport_clock);

CREATE TABLE message_events (
	event_id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload BLOB NOT NULL,
	signature BLOB NOT NULL,
	lamport_clock INTEGER NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX idx_message_events_message ON message_events(message_id);
`

const schemaPosts = `
CREATE TABLE posts (
	post_id TEXT NOT NULL PRIMARY KEY,
	author TEXT NOT NULL,
	content_type TEXT NOT NULL,
	content_text TEXT,
	visibility TEXT NOT NULL,
	lamport_clock INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER,
	deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_posts_author ON posts(author, lamport_clock);

CREATE TABLE post_events (
	event_id INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id TEXT NOT NULL,
	author TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload BLOB NOT NULL,
	signature BLOB NOT NULL,
	lamport_clock INTEGER NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX idx_post_events_post ON post_events(post_id);

CREATE TABLE post_media (
	post_id TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	PRIMARY KEY (post_id, content_hash)
);
CREATE INDEX idx_post_media_hash ON post_media(content_hash);

CREATE TABLE post_comments (
	comment_id TEXT NOT NULL PRIMARY KEY,
	post_id TEXT NOT NULL,
	author TEXT NOT NULL,
	content_text TEXT NOT NULL,
	lamport_clock INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_post_comments_post ON post_comments(post_id, lamport_clock);

CREATE TABLE post_likes (
	post_id TEXT NOT NULL,
	author TEXT NOT NULL,
	lamport_clock INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (post_id, author)
);
`

const schemaPermissions = `
CREATE TABLE permissions_current (
	subject TEXT NOT NULL,
	capability TEXT NOT NULL,
	issuer TEXT NOT NULL,
	grant_id TEXT NOT NULL,
	scope TEXT,
	lamport_clock INTEGER NOT NULL,
	issued_at INTEGER NOT NULL,
	expires_at INTEGER,
	revoked INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (subject, capability)
);

CREATE TABLE permission_events (
	event_id INTEGER PRIMARY KEY AUTOINCREMENT,
	grant_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload BLOB NOT NULL,
	signature BLOB NOT NULL,
	lamport_clock INTEGER NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX idx_permission_events_grant ON permission_events(grant_id);
`

const schemaClocksAndNonces = `
CREATE TABLE lamport_clocks (
	author TEXT NOT NULL PRIMARY KEY,
	clock INTEGER NOT NULL
);

CREATE TABLE conversation_counters (
	conversation_id TEXT NOT NULL PRIMARY KEY,
	next_counter INTEGER NOT NULL
);

CREATE TABLE received_nonces (
	sender TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	nonce_counter INTEGER NOT NULL,
	received_at INTEGER NOT NULL,
	PRIMARY KEY (sender, conversation_id, nonce_counter)
);
`

const schemaSyncCursors = `
CREATE TABLE sync_cursors (
	peer_id TEXT NOT NULL PRIMARY KEY,
	cursor BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

const schemaBoards = `
CREATE TABLE relay_communities (
	relay_peer_id TEXT NOT NULL PRIMARY KEY,
	community_name TEXT NOT NULL,
	addresses TEXT NOT NULL,
	joined_at INTEGER NOT NULL
);

CREATE TABLE boards (
	board_id TEXT NOT NULL PRIMARY KEY,
	relay_peer_id TEXT NOT NULL,
	name TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE board_posts (
	post_id TEXT NOT NULL PRIMARY KEY,
	board_id TEXT NOT NULL,
	author TEXT NOT NULL,
	content_type TEXT NOT NULL,
	content_text TEXT,
	lamport_clock INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_board_posts_board ON board_posts(board_id, lamport_clock);

CREATE TABLE board_sync_cursors (
	board_id TEXT NOT NULL PRIMARY KEY,
	last_lamport_clock INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

const schemaBootstrapNodes = `
CREATE TABLE bootstrap_nodes (
	peer_id TEXT NOT NULL PRIMARY KEY,
	multiaddr TEXT NOT NULL,
	added_at INTEGER NOT NULL
);
`

// schemaRelayServer mirrors original_source/relay-server/src/db.rs
// table-for-table: a relay tracks the peers it has seen, a ban list
// checked before any signature is even verified, a per-author clock
// high-water-mark for the clock-validated insert transaction, and a
// mirror of wall posts submitted for safekeeping.
const schemaRelayServer = `
CREATE TABLE known_peers (
	peer_id TEXT NOT NULL PRIMARY KEY,
	ed25519_public_key BLOB NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	first_seen_at INTEGER NOT NULL,
	last_seen_at INTEGER NOT NULL
);

CREATE TABLE banned_peers (
	peer_id TEXT NOT NULL PRIMARY KEY,
	reason TEXT NOT NULL DEFAULT '',
	banned_at INTEGER NOT NULL
);

CREATE TABLE author_lamport_clocks (
	author TEXT NOT NULL PRIMARY KEY,
	highest_seen_clock INTEGER NOT NULL
);

CREATE TABLE wall_posts (
	post_id TEXT NOT NULL PRIMARY KEY,
	author TEXT NOT NULL,
	content_type TEXT NOT NULL,
	content_text TEXT,
	inner_signature BLOB NOT NULL,
	submitting_peer TEXT NOT NULL,
	lamport_clock INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX idx_wall_posts_author ON wall_posts(author, lamport_clock);
`
