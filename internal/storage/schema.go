package storage

// Table names used for change notifications.
const (
	TableQuestions   = "questions"
	TablePreferences = "preferences"
)

const schema = `
-- The 'questions' table stores every study card. Ids come from the import file.
CREATE TABLE IF NOT EXISTS questions (
    id INTEGER PRIMARY KEY,
    chapter TEXT NOT NULL,
    section TEXT NOT NULL,
    subTopic TEXT NOT NULL,
    content TEXT NOT NULL,
    answer TEXT NOT NULL,
    isAnswered INTEGER NOT NULL DEFAULT 0,
    status INTEGER -- NULL until rated. 0: Forgot, 1: Vague, 2: Known, 3: Mastered
);

CREATE INDEX IF NOT EXISTS idx_questions_chapter ON questions(chapter, id);

-- The 'preferences' table is a small key/value store for local app flags such as first_launch.
CREATE TABLE IF NOT EXISTS preferences (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
