package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS console_users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS bots (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT NOT NULL,
        description TEXT,
        system_prompt TEXT NOT NULL DEFAULT '',
        model TEXT NOT NULL DEFAULT '',
        temperature REAL NOT NULL DEFAULT 0.7,
        active BOOLEAN NOT NULL DEFAULT TRUE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS flows (
        id TEXT PRIMARY KEY, -- UUID
        bot_id TEXT NOT NULL,
        name TEXT NOT NULL,
        trigger_keyword TEXT NOT NULL DEFAULT '',
        steps TEXT NOT NULL DEFAULT '[]', -- Opaque JSON
        active BOOLEAN NOT NULL DEFAULT TRUE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (bot_id) REFERENCES bots (id)
    );

    CREATE TABLE IF NOT EXISTS integrations (
        id TEXT PRIMARY KEY, -- UUID
        bot_id TEXT NOT NULL,
        provider TEXT NOT NULL CHECK (provider IN ('evolution', 'kommo')),
        instance_name TEXT NOT NULL DEFAULT '',
        config TEXT NOT NULL DEFAULT '{}', -- Opaque JSON
        status TEXT NOT NULL DEFAULT 'disconnected',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (bot_id) REFERENCES bots (id)
    );

    CREATE TABLE IF NOT EXISTS knowledge_files (
        id TEXT PRIMARY KEY, -- UUID
        bot_id TEXT NOT NULL,
        filename TEXT NOT NULL,
        content_type TEXT NOT NULL DEFAULT 'text/plain',
        size INTEGER NOT NULL DEFAULT 0,
        content BLOB,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (bot_id) REFERENCES bots (id)
    );

    CREATE TABLE IF NOT EXISTS message_feedback (
        id TEXT PRIMARY KEY, -- UUID
        bot_id TEXT NOT NULL,
        user_message_context TEXT NOT NULL,
        original_bot_response TEXT NOT NULL DEFAULT '',
        improved_response TEXT NOT NULL,
        status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'applied', 'rejected')),
        similarity_keywords TEXT NOT NULL DEFAULT '[]', -- JSON array of lowercase tokens
        conversation_context TEXT, -- Opaque JSON
        times_applied INTEGER NOT NULL DEFAULT 0,
        last_applied_at DATETIME,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (bot_id) REFERENCES bots (id)
    );

    CREATE INDEX IF NOT EXISTS idx_feedback_bot_status ON message_feedback (bot_id, status);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Console user methods

func (s *SQLiteStore) GetUserByEmail(email string) (*ConsoleUser, error) {
	var user ConsoleUser
	err := s.db.QueryRow("SELECT id, email, password_hash, created_at FROM console_users WHERE email = ?", email).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(email, passwordHash string) (*ConsoleUser, error) {
	res, err := s.db.Exec("INSERT INTO console_users (email, password_hash) VALUES (?, ?)", email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()

	var user ConsoleUser
	err = s.db.QueryRow("SELECT id, email, password_hash, created_at FROM console_users WHERE id = ?", id).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// Bot methods

func (s *SQLiteStore) CreateBot(bot *Bot) error {
	bot.ID = uuid.NewString()
	now := time.Now()
	bot.CreatedAt = now
	bot.UpdatedAt = now

	_, err := s.db.Exec(
		"INSERT INTO bots (id, name, description, system_prompt, model, temperature, active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		bot.ID, bot.Name, bot.Description, bot.SystemPrompt, bot.Model, bot.Temperature, bot.Active, bot.CreatedAt, bot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetBotByID(botID string) (*Bot, error) {
	var bot Bot
	var description sql.NullString
	err := s.db.QueryRow(
		"SELECT id, name, description, system_prompt, model, temperature, active, created_at, updated_at FROM bots WHERE id = ?", botID,
	).Scan(&bot.ID, &bot.Name, &description, &bot.SystemPrompt, &bot.Model, &bot.Temperature, &bot.Active, &bot.CreatedAt, &bot.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get bot: %w", err)
	}
	if description.Valid {
		bot.Description = &description.String
	}
	return &bot, nil
}

func (s *SQLiteStore) ListBots() ([]Bot, error) {
	rows, err := s.db.Query("SELECT id, name, description, system_prompt, model, temperature, active, created_at, updated_at FROM bots ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query bots: %w", err)
	}
	defer rows.Close()

	var bots []Bot
	for rows.Next() {
		var bot Bot
		var description sql.NullString
		if err := rows.Scan(&bot.ID, &bot.Name, &description, &bot.SystemPrompt, &bot.Model, &bot.Temperature, &bot.Active, &bot.CreatedAt, &bot.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bot row: %w", err)
		}
		if description.Valid {
			bot.Description = &description.String
		}
		bots = append(bots, bot)
	}
	return bots, rows.Err()
}

func (s *SQLiteStore) UpdateBot(bot *Bot) error {
	bot.UpdatedAt = time.Now()
	res, err := s.db.Exec(
		"UPDATE bots SET name = ?, description = ?, system_prompt = ?, model = ?, temperature = ?, active = ?, updated_at = ? WHERE id = ?",
		bot.Name, bot.Description, bot.SystemPrompt, bot.Model, bot.Temperature, bot.Active, bot.UpdatedAt, bot.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update bot: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) DeleteBot(botID string) error {
	res, err := s.db.Exec("DELETE FROM bots WHERE id = ?", botID)
	if err != nil {
		return fmt.Errorf("failed to delete bot: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Flow methods

func (s *SQLiteStore) CreateFlow(flow *Flow) error {
	flow.ID = uuid.NewString()
	now := time.Now()
	flow.CreatedAt = now
	flow.UpdatedAt = now
	if len(flow.Steps) == 0 {
		flow.Steps = []byte("[]")
	}

	_, err := s.db.Exec(
		"INSERT INTO flows (id, bot_id, name, trigger_keyword, steps, active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		flow.ID, flow.BotID, flow.Name, flow.TriggerKeyword, string(flow.Steps), flow.Active, flow.CreatedAt, flow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert flow: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetFlowByID(flowID, botID string) (*Flow, error) {
	var flow Flow
	var steps string
	err := s.db.QueryRow(
		"SELECT id, bot_id, name, trigger_keyword, steps, active, created_at, updated_at FROM flows WHERE id = ? AND bot_id = ?",
		flowID, botID,
	).Scan(&flow.ID, &flow.BotID, &flow.Name, &flow.TriggerKeyword, &steps, &flow.Active, &flow.CreatedAt, &flow.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}
	flow.Steps = []byte(steps)
	return &flow, nil
}

func (s *SQLiteStore) ListFlowsByBot(botID string) ([]Flow, error) {
	rows, err := s.db.Query(
		"SELECT id, bot_id, name, trigger_keyword, steps, active, created_at, updated_at FROM flows WHERE bot_id = ? ORDER BY created_at DESC",
		botID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer rows.Close()

	var flows []Flow
	for rows.Next() {
		var flow Flow
		var steps string
		if err := rows.Scan(&flow.ID, &flow.BotID, &flow.Name, &flow.TriggerKeyword, &steps, &flow.Active, &flow.CreatedAt, &flow.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan flow row: %w", err)
		}
		flow.Steps = []byte(steps)
		flows = append(flows, flow)
	}
	return flows, rows.Err()
}

func (s *SQLiteStore) UpdateFlow(flow *Flow) error {
	flow.UpdatedAt = time.Now()
	if len(flow.Steps) == 0 {
		flow.Steps = []byte("[]")
	}
	res, err := s.db.Exec(
		"UPDATE flows SET name = ?, trigger_keyword = ?, steps = ?, active = ?, updated_at = ? WHERE id = ? AND bot_id = ?",
		flow.Name, flow.TriggerKeyword, string(flow.Steps), flow.Active, flow.UpdatedAt, flow.ID, flow.BotID,
	)
	if err != nil {
		return fmt.Errorf("failed to update flow: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) DeleteFlow(flowID, botID string) error {
	res, err := s.db.Exec("DELETE FROM flows WHERE id = ? AND bot_id = ?", flowID, botID)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Integration methods

func (s *SQLiteStore) CreateIntegration(integration *Integration) error {
	integration.ID = uuid.NewString()
	now := time.Now()
	integration.CreatedAt = now
	integration.UpdatedAt = now
	if len(integration.Config) == 0 {
		integration.Config = []byte("{}")
	}
	if integration.Status == "" {
		integration.Status = "disconnected"
	}

	_, err := s.db.Exec(
		"INSERT INTO integrations (id, bot_id, provider, instance_name, config, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		integration.ID, integration.BotID, integration.Provider, integration.InstanceName, string(integration.Config), integration.Status, integration.CreatedAt, integration.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert integration: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetIntegrationByID(integrationID, botID string) (*Integration, error) {
	var integration Integration
	var config string
	err := s.db.QueryRow(
		"SELECT id, bot_id, provider, instance_name, config, status, created_at, updated_at FROM integrations WHERE id = ? AND bot_id = ?",
		integrationID, botID,
	).Scan(&integration.ID, &integration.BotID, &integration.Provider, &integration.InstanceName, &config, &integration.Status, &integration.CreatedAt, &integration.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	integration.Config = []byte(config)
	return &integration, nil
}

func (s *SQLiteStore) ListIntegrationsByBot(botID string) ([]Integration, error) {
	rows, err := s.db.Query(
		"SELECT id, bot_id, provider, instance_name, config, status, created_at, updated_at FROM integrations WHERE bot_id = ? ORDER BY created_at DESC",
		botID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrations: %w", err)
	}
	defer rows.Close()

	var integrations []Integration
	for rows.Next() {
		var integration Integration
		var config string
		if err := rows.Scan(&integration.ID, &integration.BotID, &integration.Provider, &integration.InstanceName, &config, &integration.Status, &integration.CreatedAt, &integration.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan integration row: %w", err)
		}
		integration.Config = []byte(config)
		integrations = append(integrations, integration)
	}
	return integrations, rows.Err()
}

func (s *SQLiteStore) UpdateIntegrationStatus(integrationID, botID, status string) error {
	res, err := s.db.Exec(
		"UPDATE integrations SET status = ?, updated_at = ? WHERE id = ? AND bot_id = ?",
		status, time.Now(), integrationID, botID,
	)
	if err != nil {
		return fmt.Errorf("failed to update integration status: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) DeleteIntegration(integrationID, botID string) error {
	res, err := s.db.Exec("DELETE FROM integrations WHERE id = ? AND bot_id = ?", integrationID, botID)
	if err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Knowledge file methods

func (s *SQLiteStore) CreateKnowledgeFile(file *KnowledgeFile) error {
	file.ID = uuid.NewString()
	file.CreatedAt = time.Now()
	file.Size = int64(len(file.Content))

	_, err := s.db.Exec(
		"INSERT INTO knowledge_files (id, bot_id, filename, content_type, size, content, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		file.ID, file.BotID, file.Filename, file.ContentType, file.Size, file.Content, file.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert knowledge file: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetKnowledgeFileByID(fileID, botID string) (*KnowledgeFile, error) {
	var file KnowledgeFile
	err := s.db.QueryRow(
		"SELECT id, bot_id, filename, content_type, size, content, created_at FROM knowledge_files WHERE id = ? AND bot_id = ?",
		fileID, botID,
	).Scan(&file.ID, &file.BotID, &file.Filename, &file.ContentType, &file.Size, &file.Content, &file.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get knowledge file: %w", err)
	}
	return &file, nil
}

func (s *SQLiteStore) ListKnowledgeFilesByBot(botID string) ([]KnowledgeFile, error) {
	rows, err := s.db.Query(
		"SELECT id, bot_id, filename, content_type, size, created_at FROM knowledge_files WHERE bot_id = ? ORDER BY created_at DESC",
		botID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge files: %w", err)
	}
	defer rows.Close()

	var files []KnowledgeFile
	for rows.Next() {
		var file KnowledgeFile
		if err := rows.Scan(&file.ID, &file.BotID, &file.Filename, &file.ContentType, &file.Size, &file.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge file row: %w", err)
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) DeleteKnowledgeFile(fileID, botID string) error {
	res, err := s.db.Exec("DELETE FROM knowledge_files WHERE id = ? AND bot_id = ?", fileID, botID)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge file: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
