package store

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS trucks (
    id            BIGSERIAL PRIMARY KEY,
    name          TEXT NOT NULL UNIQUE,
    license_plate TEXT NOT NULL DEFAULT '',
    capacity_kg   DOUBLE PRECISION NOT NULL DEFAULT 0,
    truck_type    TEXT NOT NULL DEFAULT 'box',
    active        BOOLEAN NOT NULL DEFAULT TRUE,
    op_status     TEXT NOT NULL DEFAULT 'idle',
    last_lat      DOUBLE PRECISION,
    last_lng      DOUBLE PRECISION,
    last_speed    DOUBLE PRECISION,
    last_heading  DOUBLE PRECISION,
    last_captured_at TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS warehouses (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    lat         DOUBLE PRECISION NOT NULL,
    lng         DOUBLE PRECISION NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS orders (
    id          BIGSERIAL PRIMARY KEY,
    reference   TEXT NOT NULL UNIQUE,
    status      TEXT NOT NULL DEFAULT 'pending',
    dealer_name TEXT NOT NULL DEFAULT '',
    dest_lat    DOUBLE PRECISION,
    dest_lng    DOUBLE PRECISION,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_orders_reference ON orders(reference);

CREATE TABLE IF NOT EXISTS assignments (
    id            BIGSERIAL PRIMARY KEY,
    ref           TEXT NOT NULL UNIQUE,
    order_id      BIGINT NOT NULL REFERENCES orders(id),
    truck_id      BIGINT NOT NULL REFERENCES trucks(id),
    warehouse_id  BIGINT NOT NULL REFERENCES warehouses(id),
    driver_name   TEXT NOT NULL DEFAULT '',
    driver_phone  TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'assigned',
    origin_lat    DOUBLE PRECISION,
    origin_lng    DOUBLE PRECISION,
    current_lat   DOUBLE PRECISION,
    current_lng   DOUBLE PRECISION,
    current_speed DOUBLE PRECISION,
    current_heading DOUBLE PRECISION,
    current_captured_at TIMESTAMPTZ,
    assigned_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    pickup_at     TIMESTAMPTZ,
    delivered_at  TIMESTAMPTZ,
    estimated_delivery_at TIMESTAMPTZ,
    cancel_reason TEXT NOT NULL DEFAULT '',
    notes         TEXT NOT NULL DEFAULT '',
    version       BIGINT NOT NULL DEFAULT 1,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_assignments_order ON assignments(order_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_one_active ON assignments(order_id)
    WHERE status NOT IN ('delivered', 'cancelled');
CREATE INDEX IF NOT EXISTS idx_assignments_truck ON assignments(truck_id);
CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments(status);

CREATE TABLE IF NOT EXISTS breadcrumbs (
    id            BIGSERIAL PRIMARY KEY,
    assignment_id BIGINT NOT NULL REFERENCES assignments(id),
    truck_id      BIGINT NOT NULL REFERENCES trucks(id),
    lat           DOUBLE PRECISION NOT NULL,
    lng           DOUBLE PRECISION NOT NULL,
    speed         DOUBLE PRECISION,
    heading       DOUBLE PRECISION,
    captured_at   TIMESTAMPTZ NOT NULL,
    received_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_breadcrumbs_dedup ON breadcrumbs(assignment_id, captured_at);
CREATE INDEX IF NOT EXISTS idx_breadcrumbs_assignment ON breadcrumbs(assignment_id, captured_at);

CREATE TABLE IF NOT EXISTS assignment_history (
    id            BIGSERIAL PRIMARY KEY,
    assignment_id BIGINT NOT NULL REFERENCES assignments(id),
    status        TEXT NOT NULL,
    detail        TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_assignment_history ON assignment_history(assignment_id);

CREATE TABLE IF NOT EXISTS outbox (
    id          BIGSERIAL PRIMARY KEY,
    topic       TEXT NOT NULL,
    payload     BYTEA NOT NULL,
    msg_type    TEXT NOT NULL DEFAULT '',
    retries     INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at);

CREATE TABLE IF NOT EXISTS admin_users (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS device_tokens (
    id          BIGSERIAL PRIMARY KEY,
    token_hash  TEXT NOT NULL UNIQUE,
    truck_id    BIGINT NOT NULL REFERENCES trucks(id),
    label       TEXT NOT NULL DEFAULT '',
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_device_tokens_truck ON device_tokens(truck_id);
`
