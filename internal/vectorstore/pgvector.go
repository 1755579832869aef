package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"careerforge-go/internal/model"
	"careerforge-go/pkg/log"
)

// PgVectorBackend 使用 PostgreSQL + pgvector 存储分块，表结构与 Supabase 的 documents 表一致：
// (id bigserial, content text, metadata jsonb, embedding vector(n))。
type PgVectorBackend struct {
	db            *sql.DB
	table         string
	matchFunction string
}

// NewPgVectorBackend 创建 pgvector 后端。matchFunction 非空时检索通过该 SQL 函数完成。
func NewPgVectorBackend(db *sql.DB, table, matchFunction string) *PgVectorBackend {
	if table == "" {
		table = "documents"
	}
	return &PgVectorBackend{db: db, table: table, matchFunction: matchFunction}
}

// EnsureSchema 创建 vector 扩展和分块表。
func (p *PgVectorBackend) EnsureSchema(ctx context.Context, dims int) error {
	if _, err := p.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("创建 vector 扩展失败: %w", err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id bigserial PRIMARY KEY,
		content text NOT NULL,
		metadata jsonb,
		embedding vector(%d)
	)`, pq.QuoteIdentifier(p.table), dims)
	if _, err := p.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("创建表 %s 失败: %w", p.table, err)
	}
	log.Infof("[PgVector] 表 '%s' 已就绪, 维度: %d", p.table, dims)
	return nil
}

func (p *PgVectorBackend) insertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (content, metadata, embedding) VALUES ($1, $2, $3)`, pq.QuoteIdentifier(p.table))
}

func (p *PgVectorBackend) insertAll(ctx context.Context, tx *sql.Tx, records []model.ChunkRecord) error {
	stmt, err := tx.PrepareContext(ctx, p.insertSQL())
	if err != nil {
		return fmt.Errorf("准备插入语句失败: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		meta, err := json.Marshal(withModelVersion(r.Chunk.Metadata, r.ModelVersion))
		if err != nil {
			return fmt.Errorf("序列化分块 %d 元数据失败: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, r.Chunk.Content, string(meta), pgvector.NewVector(r.Embedding)); err != nil {
			return fmt.Errorf("插入分块 %d 失败: %w", i, err)
		}
	}
	return nil
}

// Insert 在一个事务中追加分块。
func (p *PgVectorBackend) Insert(ctx context.Context, records []model.ChunkRecord) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		return p.insertAll(ctx, tx, records)
	})
}

// Replace 在一个事务中删除旧分块并写入新分块，提交前其他连接看到的始终是旧数据。
func (p *PgVectorBackend) Replace(ctx context.Context, records []model.ChunkRecord) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, pq.QuoteIdentifier(p.table))); err != nil {
			return fmt.Errorf("清空旧分块失败: %w", err)
		}
		return p.insertAll(ctx, tx, records)
	})
}

func (p *PgVectorBackend) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Warnf("[PgVector] 回滚事务失败: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// Search 使用余弦距离检索，similarity = 1 - (embedding <=> query)。
func (p *PgVectorBackend) Search(ctx context.Context, vector []float32, threshold float64, limit int) ([]model.Document, error) {
	var (
		query string
		args  []any
		vec   = pgvector.NewVector(vector)
	)
	switch {
	case p.matchFunction != "":
		if math.IsInf(threshold, -1) {
			threshold = -1
		}
		query = fmt.Sprintf(`SELECT content, metadata, similarity FROM %s($1, $2, $3)`, pq.QuoteIdentifier(p.matchFunction))
		args = []any{vec, threshold, limit}
	case math.IsInf(threshold, -1):
		query = fmt.Sprintf(`SELECT content, metadata, 1 - (embedding <=> $1) AS similarity
			FROM %s
			ORDER BY embedding <=> $1
			LIMIT $2`, pq.QuoteIdentifier(p.table))
		args = []any{vec, limit}
	default:
		query = fmt.Sprintf(`SELECT content, metadata, 1 - (embedding <=> $1) AS similarity
			FROM %s
			WHERE 1 - (embedding <=> $1) >= $2
			ORDER BY embedding <=> $1
			LIMIT $3`, pq.QuoteIdentifier(p.table))
		args = []any{vec, threshold, limit}
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector 检索失败: %w", err)
	}
	defer rows.Close()

	docs := make([]model.Document, 0, limit)
	for rows.Next() {
		var (
			doc  model.Document
			meta []byte
		)
		if err := rows.Scan(&doc.Content, &meta, &doc.Similarity); err != nil {
			return nil, fmt.Errorf("读取检索结果失败: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("解析元数据失败: %w", err)
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Ping 检查数据库连接。
func (p *PgVectorBackend) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
