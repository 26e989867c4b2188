package sqlinline

const QInsertCover = `--sql 2f6b1d44-9c0e-4a57-8f13-6c2a9e51d07b
insert into covers(id, storage_key, title, subtitle, client_id, width, height, generation_params, created_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, $6::int, $7::int, coalesce($8::jsonb, '{}'::jsonb), now());
`

const QListBrandingAliases = `--sql 84d3a6e1-1b72-4c09-9a44-f0c58b2e6a19
select alias, asset_name, blend_weight
from branding_aliases;
`

// SchemaDDL creates the tables this service reads and writes. Applied out of
// band; the service never migrates on boot.
const SchemaDDL = `--sql 5c09e8f7-4d21-48b6-b3aa-17d46a0c92e5
create table if not exists covers (
  id uuid primary key,
  storage_key text not null,
  title text not null,
  subtitle text not null default '',
  client_id text not null default '',
  width int not null,
  height int not null,
  generation_params jsonb not null default '{}'::jsonb,
  created_at timestamptz not null default now()
);

create table if not exists branding_aliases (
  alias text primary key,
  asset_name text not null,
  blend_weight double precision not null default 0.8
);
`
