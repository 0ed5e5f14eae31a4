package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the statements that create the service tables.  Every
// statement is idempotent so Migrate can run on each start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS seats (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		show_date  VARCHAR(10)     NOT NULL,
		row_label  VARCHAR(8)      NOT NULL,
		number     INT             NOT NULL,
		available  TINYINT(1)      NOT NULL DEFAULT 1,
		selected   TINYINT(1)      NOT NULL DEFAULT 0,
		seat_type  VARCHAR(16)     NOT NULL DEFAULT 'Standard',
		PRIMARY KEY (id),
		UNIQUE KEY uq_seat (show_date, row_label, number),
		KEY idx_seats_available (show_date, available)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS orders (
		id                  CHAR(36)     NOT NULL,
		first_name          VARCHAR(100) NOT NULL,
		last_name           VARCHAR(100) NOT NULL,
		email               VARCHAR(255) NOT NULL,
		phone               VARCHAR(40)  NOT NULL DEFAULT '',
		is_student          TINYINT(1)   NOT NULL DEFAULT 0,
		student_count       INT          NOT NULL DEFAULT 0,
		selected_date       VARCHAR(10)  NOT NULL,
		total_price_cents   BIGINT       NOT NULL DEFAULT 0,
		paid                TINYINT(1)   NOT NULL DEFAULT 0,
		holder_id           VARCHAR(64)  NOT NULL DEFAULT '',
		checkout_session_id VARCHAR(255) NULL,
		created_at          DATETIME     NOT NULL,
		updated_at          DATETIME     NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_checkout_session (checkout_session_id),
		KEY idx_orders_date (selected_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS order_seats (
		order_id  CHAR(36)    NOT NULL,
		row_label VARCHAR(8)  NOT NULL,
		number    INT         NOT NULL,
		seat_type VARCHAR(16) NOT NULL,
		PRIMARY KEY (order_id, row_label, number),
		CONSTRAINT fk_order_seats_order FOREIGN KEY (order_id) REFERENCES orders (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the seats, orders and order_seats tables when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
