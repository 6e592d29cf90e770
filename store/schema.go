// CLAUDE:SUMMARY Applies the complete schema: users, posts and comments with generation status columns.
package store

// Schema is the complete application schema. Timestamps are unix
// milliseconds; the HTTP layer renders them as RFC 3339.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE COLLATE NOCASE,
    password_hash TEXT NOT NULL,
    created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
    id                  TEXT PRIMARY KEY,
    user_id             INTEGER NOT NULL REFERENCES users(id),
    image_data          BLOB NOT NULL,
    original_image_data BLOB NOT NULL,
    squiggle_points     TEXT NOT NULL,
    color_hex           TEXT NOT NULL,
    structured_object   TEXT NOT NULL DEFAULT '{}',
    image_analysis      TEXT NOT NULL DEFAULT '{}',
    squiggle_features   TEXT NOT NULL DEFAULT '{}',
    compiled_prompt     TEXT NOT NULL DEFAULT '',
    enhancement_prompt  TEXT NOT NULL DEFAULT '',
    audio_filename      TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL DEFAULT 'generating',
    error_message       TEXT,
    created_at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_user ON posts(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_posts_time ON posts(created_at DESC);

CREATE TABLE IF NOT EXISTS comments (
    id                TEXT PRIMARY KEY,
    post_id           TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    user_id           INTEGER NOT NULL REFERENCES users(id),
    image_data        BLOB NOT NULL,
    squiggle_points   TEXT NOT NULL,
    color_hex         TEXT NOT NULL,
    structured_object TEXT NOT NULL DEFAULT '{}',
    image_analysis    TEXT NOT NULL DEFAULT '{}',
    squiggle_features TEXT NOT NULL DEFAULT '{}',
    compiled_prompt   TEXT NOT NULL DEFAULT '',
    audio_filename    TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL DEFAULT 'generating',
    error_message     TEXT,
    created_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id, created_at ASC);
`
