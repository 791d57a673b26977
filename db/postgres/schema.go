package postgres

const SCHEMA = `
CREATE TABLE mounts (
    id                 varchar(64)  not null primary key,
    category           varchar(16)  not null,
    type_              varchar(64)  not null,
    path               varchar(256) not null,
    description        text         not null default '',
    local_             boolean      not null default false,
    seal_wrap          boolean      not null default false,
    default_lease_ttl  varchar(32)  not null default '',
    max_lease_ttl      varchar(32)  not null default '',
    options            jsonb,
    created_at         timestamp    not null
);

CREATE UNIQUE INDEX idx_mounts_category_path ON mounts (category, path);

CREATE TABLE backend_configs (
    id          varchar(64)  not null primary key,
    mount_id    varchar(64)  not null references mounts(id) on delete cascade,
    type_       varchar(128) not null,
    fields      jsonb        not null,
    updated_at  timestamp    not null
);

CREATE UNIQUE INDEX idx_backend_configs_mount_id ON backend_configs (mount_id);
`
