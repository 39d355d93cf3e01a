package sqlinline

const QSelectUserByID = `--sql 4b6d8f0a-1c3e-4b5d-a65f-7d9b1f3a5c20
select id, name, email, role, locale, created_at, updated_at
from users
where id = $1::uuid;
`
