package colorlookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/eugenenazirov/announcer/internal/venue"
)

const (
	driverName = "sqlserver"

	defaultQueryTimeout  = 30 * time.Second
	connectTimeoutSecond = 30
)

// colorQuery expands the printer group's color rotation into intervals of the
// group's own timeincrement, starting at the shift date change time, and
// returns the first interval that starts after @now, wrapping to the first
// interval of the day.
const colorQuery = `
SET NOCOUNT ON;

DECLARE @TimeFormat VARCHAR(max) = 'hh:mm';

DECLARE @Colors TABLE (code INT, name VARCHAR(max));
INSERT INTO @Colors VALUES
    (-65536, 'Red'),
    (-256, 'Yellow'),
    (-16711681, 'Blue'),
    (-16711936, 'Green'),
    (-23296, 'Orange');

DECLARE @Increment INT;
DECLARE @NumGroups INT;
DECLARE @NumColors INT;
DECLARE @ShiftDateChangeTime TIME;

SELECT @Increment = timeincrement
FROM ticketprintergroups
WHERE ticketprintergroupno = @printer_group;

SET @NumGroups = 1440 / @Increment;

SELECT @NumColors = COUNT(0)
FROM ticketprintergroupcolors
WHERE ticketprintergroupno = @printer_group;

SELECT @ShiftDateChangeTime = shiftdatechangetime
FROM applicationinfo;

DECLARE @Intervals TABLE (starttime TIME, color VARCHAR(max));

WITH nums AS (
    SELECT 0 AS value
    UNION ALL
    SELECT value + 1 FROM nums WHERE nums.value < @NumGroups - 1
)
INSERT INTO @Intervals
SELECT
    DATEADD(minute, n.value * @Increment, @ShiftDateChangeTime),
    COALESCE(o.name, 'Unknown')
FROM nums n
JOIN ticketprintergroupcolors c
    ON c.ticketprintergroupno = @printer_group
    AND c.corder = n.value % @NumColors
LEFT OUTER JOIN @Colors o
    ON c.color = o.code
OPTION (MAXRECURSION 1440);

SELECT TOP 1
    color + ' wristbands will be expiring at ' + FORMAT(CAST(starttime AS DATETIME), @TimeFormat) + '!'
FROM @Intervals
WHERE starttime > CAST(DATEADD(minute, @Increment * @intervals_ahead, @now) AS TIME)
    OR CAST(DATEADD(minute, @Increment * @intervals_ahead, @now) AS TIME) > (SELECT MAX(starttime) FROM @Intervals)
ORDER BY starttime;
`

// SQLOption configures an SQLLookup.
type SQLOption func(*SQLLookup)

// WithQueryTimeout bounds each lookup.
func WithQueryTimeout(d time.Duration) SQLOption {
	return func(l *SQLLookup) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithPrinterGroup selects the ticket printer group whose colors are announced.
func WithPrinterGroup(group int) SQLOption {
	return func(l *SQLLookup) {
		l.printerGroup = group
	}
}

// WithIntervalsAhead looks further ahead than the next interval.
func WithIntervalsAhead(n int) SQLOption {
	return func(l *SQLLookup) {
		l.intervalsAhead = n
	}
}

// WithLogger sets the lookup logger.
func WithLogger(logger *zap.Logger) SQLOption {
	return func(l *SQLLookup) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// SQLLookup queries the ticketing database for the next expiring wristband color.
type SQLLookup struct {
	db             *sql.DB
	timeout        time.Duration
	printerGroup   int
	intervalsAhead int
	logger         *zap.Logger
}

// NewSQLLookup wraps an open database handle.
func NewSQLLookup(db *sql.DB, opts ...SQLOption) *SQLLookup {
	l := &SQLLookup{
		db:           db,
		timeout:      defaultQueryTimeout,
		printerGroup: 1,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open prepares a lookup against the SQL Server described by d. No
// connection is made until the first lookup; idle connections are not kept,
// so every lookup connects afresh.
func Open(d venue.Database, opts ...SQLOption) (*SQLLookup, error) {
	if !d.Configured() {
		return nil, fmt.Errorf("%w: database server and name are required", ErrLookup)
	}
	db, err := sql.Open(driverName, DSN(d))
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrLookup, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)
	return NewSQLLookup(db, opts...), nil
}

// DSN builds a go-mssqldb connection URL. The server may carry a port or a
// named instance (host\instance).
func DSN(d venue.Database) string {
	q := url.Values{}
	q.Set("database", d.Name)
	q.Set("connection timeout", strconv.Itoa(connectTimeoutSecond))

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     d.Server,
		RawQuery: q.Encode(),
	}
	if host, instance, ok := strings.Cut(d.Server, `\`); ok {
		u.Host = host
		u.Path = instance
	}
	return u.String()
}

// Lookup runs the color query for at.
func (l *SQLLookup) Lookup(ctx context.Context, at time.Time) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var message sql.NullString
	err := l.db.QueryRowContext(ctx, colorQuery,
		sql.Named("printer_group", l.printerGroup),
		sql.Named("intervals_ahead", l.intervalsAhead),
		sql.Named("now", at),
	).Scan(&message)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		l.logger.Warn("no color data returned from database")
		return Result{}, ErrNoColor
	case err != nil:
		return Result{}, fmt.Errorf("%w: %w", ErrLookup, err)
	case !message.Valid:
		return Result{}, ErrNoColor
	}

	res, err := ParseMessage(message.String)
	if err != nil {
		return Result{}, err
	}
	l.logger.Debug("color lookup", zap.String("color", res.Color), zap.String("message", res.Message))
	return res, nil
}

// Close releases the database handle.
func (l *SQLLookup) Close() error {
	return l.db.Close()
}
