package perceptron_controllers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/edumdp-dev/perceptron/perceptron_activations"
	"github.com/go-sql-driver/mysql"
)

const DefaultRunTable = "perceptron_runs"

type DatabaseController struct {
	db    *sql.DB
	table string
}

func NewDatabaseController(username, password, db_host, db_port, db_name, table string) (*DatabaseController, error) {
	if table == "" {
		table = DefaultRunTable
	}
	if !ValidateTableName(table) {
		return nil, fmt.Errorf("table name is invalid: %s", table)
	}

	config := mysql.NewConfig()
	config.User = username
	config.Passwd = password
	config.Net = "tcp"
	config.Addr = fmt.Sprintf("%s:%s", db_host, db_port)
	config.DBName = db_name
	config.ParseTime = true

	db, err := sql.Open("mysql", config.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &DatabaseController{db: db, table: table}, nil
}

func (dc *DatabaseController) CloseDb() error {
	return dc.db.Close()
}

func (dc *DatabaseController) Ping(ctx context.Context) error {
	return dc.db.PingContext(ctx)
}

func (dc *DatabaseController) InsertRun(ctx context.Context, result SweepResult) error {
	weightsJSON, err := json.Marshal(result.Config.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal initial weights: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = os.Getenv("HOSTNAME")
	}

	_, err = dc.db.ExecContext(ctx, dc.insertRunQuery(),
		hostname,
		result.Token,
		runtime.Version(),
		string(result.Config.Activation),
		result.Config.LearningRate,
		string(weightsJSON),
		result.Status,
		result.Epochs,
		result.Steps,
		result.Updates,
		result.StartTime.Format("2006-01-02 15:04:05"),
		result.EndTime.Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("failed to insert data into MySQL: %w", err)
	}
	return nil
}

func (dc *DatabaseController) insertRunQuery() string {
	return fmt.Sprintf("INSERT INTO %s (host, token, program_version, activation, learning_rate, initial_weights, status, epochs, steps, updates, start_time, end_time) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", dc.table)
}

// QueryRunStats groups the recorded runs by activation and learning rate.
// An empty activation means no filter.
func (dc *DatabaseController) QueryRunStats(ctx context.Context, activation string) ([]RunStatsEntry, error) {
	query, args, err := dc.runStatsQuery(activation)
	if err != nil {
		return nil, err
	}
	rows, err := dc.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error retrieving data: %w", err)
	}
	defer rows.Close()

	var results []RunStatsEntry
	for rows.Next() {
		var entry RunStatsEntry
		err := rows.Scan(&entry.Activation, &entry.LearningRate, &entry.TotalCount, &entry.ConvergedCount, &entry.AvgEpochs, &entry.AvgUpdates)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

func (dc *DatabaseController) runStatsQuery(activation string) (string, []interface{}, error) {
	condition := ""
	var args []interface{}
	if activation != "" {
		handler, err := perceptron_activations.ActivationFactory(activation)
		if err != nil {
			return "", nil, err
		}
		condition = "WHERE activation = ?"
		args = append(args, string(handler.Mode()))
	}

	query := fmt.Sprintf(`
	SELECT
		activation,
		learning_rate,
		COUNT(*) AS total_count,
		COUNT(CASE WHEN status = '%s' THEN 1 END) AS converged_count,
		COALESCE(AVG(CASE WHEN status = '%s' THEN epochs END), 0) AS avg_epochs,
		COALESCE(AVG(CASE WHEN status = '%s' THEN updates END), 0) AS avg_updates
	FROM %s
	%s
	GROUP BY activation, learning_rate
	ORDER BY activation, learning_rate`, RunStatusConverged, RunStatusConverged, RunStatusConverged, dc.table, condition)
	return query, args, nil
}

// FetchRunsAsJSON dumps the whole run table, newest first.
func (dc *DatabaseController) FetchRunsAsJSON(ctx context.Context) (string, error) {
	rows, err := dc.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY start_time DESC", dc.table))
	if err != nil {
		return "", fmt.Errorf("error retrieving data: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("error getting columns: %w", err)
	}

	results := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePointers := make([]interface{}, len(columns))
		for i := range values {
			valuePointers[i] = &values[i]
		}
		if err := rows.Scan(valuePointers...); err != nil {
			return "", fmt.Errorf("error scanning row: %w", err)
		}

		rowMap := make(map[string]interface{})
		for i, col := range columns {
			// Convert []byte to string for readability
			if b, ok := values[i].([]byte); ok {
				rowMap[col] = string(b)
			} else {
				rowMap[col] = values[i]
			}
		}
		results = append(results, rowMap)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating rows: %w", err)
	}

	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error marshaling results to JSON: %w", err)
	}
	return string(jsonData), nil
}

func ValidateTableName(table string) bool {
	if table == "" {
		return false
	}
	return strings.IndexFunc(table, func(r rune) bool {
		return !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) == -1
}
