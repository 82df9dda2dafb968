package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/nao1215/linkspider/internal/model"
)

// SessionRunner abstracts neo4j.SessionWithContext.
type SessionRunner interface {
	ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork, configurers ...func(*neo4j.TransactionConfig)) (any, error)
	Close(ctx context.Context) error
}

// DriverSessioner abstracts neo4j.DriverWithContext.
type DriverSessioner interface {
	NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner
	Close(ctx context.Context) error
}

type neo4jDriver struct {
	driver neo4j.DriverWithContext
}

func (d *neo4jDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner {
	return d.driver.NewSession(ctx, config)
}

func (d *neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// neo4jCloseTimeout bounds driver shutdown in Close.
const neo4jCloseTimeout = 10 * time.Second

// Neo4j writes the link graph: one :Page node per URL and a :LINKS_TO
// relationship, tagged with the session ID, for every extracted link.
type Neo4j struct {
	driver   DriverSessioner
	database string
}

// NewNeo4j connects to uri with basic auth. The connection is verified
// lazily on the first write.
func NewNeo4j(uri, username, password, database string) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	return NewNeo4jWithDriver(&neo4jDriver{driver: driver}, database), nil
}

// NewNeo4jWithDriver builds a sink around a custom driver (tests).
func NewNeo4jWithDriver(driver DriverSessioner, database string) *Neo4j {
	return &Neo4j{driver: driver, database: database}
}

// Record implements Sink.
func (n *Neo4j) Record(ctx context.Context, rec model.FetchRecord) error {
	query, params := buildPageQuery(rec)

	session := n.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: n.database,
	})
	defer session.Close(ctx) //nolint:errcheck // the write error matters more

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	return err
}

// Close shuts the driver down.
func (n *Neo4j) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), neo4jCloseTimeout)
	defer cancel()
	return n.driver.Close(ctx)
}

// buildPageQuery merges the fetched page and, for each link, the target
// page and the relationship. An empty link list writes only the page.
func buildPageQuery(rec model.FetchRecord) (string, map[string]any) {
	query := "MERGE (p:Page {url: $url}) " +
		"SET p.fetched_at = $fetched_at, p.content_hash = $content_hash, p.error = $error " +
		"WITH p " +
		"UNWIND $links AS link " +
		"MERGE (q:Page {url: link}) " +
		"MERGE (p)-[:LINKS_TO {session_id: $session_id}]->(q)"

	links := rec.Links
	if links == nil {
		links = []string{}
	}

	params := map[string]any{
		"url":          rec.URL,
		"fetched_at":   rec.FetchedAt.UTC().Format(time.RFC3339Nano),
		"content_hash": nullable(rec.ContentHash),
		"error":        nullable(rec.Error),
		"links":        links,
		"session_id":   rec.SessionID,
	}
	return query, params
}

// nullable maps "" to nil so that SET removes the property.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
