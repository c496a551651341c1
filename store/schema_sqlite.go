package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS trucks (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    name          TEXT NOT NULL UNIQUE,
    license_plate TEXT NOT NULL DEFAULT '',
    capacity_kg   REAL NOT NULL DEFAULT 0,
    truck_type    TEXT NOT NULL DEFAULT 'box',
    active        INTEGER NOT NULL DEFAULT 1,
    op_status     TEXT NOT NULL DEFAULT 'idle',
    last_lat      REAL,
    last_lng      REAL,
    last_speed    REAL,
    last_heading  REAL,
    last_captured_at TEXT,
    created_at    TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS warehouses (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL UNIQUE,
    lat         REAL NOT NULL,
    lng         REAL NOT NULL,
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS orders (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    reference   TEXT NOT NULL UNIQUE,
    status      TEXT NOT NULL DEFAULT 'pending',
    dealer_name TEXT NOT NULL DEFAULT '',
    dest_lat    REAL,
    dest_lng    REAL,
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_orders_reference ON orders(reference);

CREATE TABLE IF NOT EXISTS assignments (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    ref           TEXT NOT NULL UNIQUE,
    order_id      INTEGER NOT NULL REFERENCES orders(id),
    truck_id      INTEGER NOT NULL REFERENCES trucks(id),
    warehouse_id  INTEGER NOT NULL REFERENCES warehouses(id),
    driver_name   TEXT NOT NULL DEFAULT '',
    driver_phone  TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'assigned',
    origin_lat    REAL,
    origin_lng    REAL,
    current_lat   REAL,
    current_lng   REAL,
    current_speed REAL,
    current_heading REAL,
    current_captured_at TEXT,
    assigned_at   TEXT NOT NULL DEFAULT (datetime('now')),
    pickup_at     TEXT,
    delivered_at  TEXT,
    estimated_delivery_at TEXT,
    cancel_reason TEXT NOT NULL DEFAULT '',
    notes         TEXT NOT NULL DEFAULT '',
    version       INTEGER NOT NULL DEFAULT 1,
    updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_assignments_order ON assignments(order_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_one_active ON assignments(order_id)
    WHERE status NOT IN ('delivered', 'cancelled');
CREATE INDEX IF NOT EXISTS idx_assignments_truck ON assignments(truck_id);
CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments(status);

CREATE TABLE IF NOT EXISTS breadcrumbs (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    assignment_id INTEGER NOT NULL REFERENCES assignments(id),
    truck_id      INTEGER NOT NULL REFERENCES trucks(id),
    lat           REAL NOT NULL,
    lng           REAL NOT NULL,
    speed         REAL,
    heading       REAL,
    captured_at   TEXT NOT NULL,
    received_at   TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_breadcrumbs_dedup ON breadcrumbs(assignment_id, captured_at);
CREATE INDEX IF NOT EXISTS idx_breadcrumbs_assignment ON breadcrumbs(assignment_id, captured_at);

CREATE TABLE IF NOT EXISTS assignment_history (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    assignment_id INTEGER NOT NULL REFERENCES assignments(id),
    status        TEXT NOT NULL,
    detail        TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_assignment_history ON assignment_history(assignment_id);

CREATE TABLE IF NOT EXISTS outbox (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    topic       TEXT NOT NULL,
    payload     BLOB NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    sent_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at);

CREATE TABLE IF NOT EXISTS admin_users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS device_tokens (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    token_hash  TEXT NOT NULL UNIQUE,
    truck_id    INTEGER NOT NULL REFERENCES trucks(id),
    label       TEXT NOT NULL DEFAULT '',
    active      INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_device_tokens_truck ON device_tokens(truck_id);
`
