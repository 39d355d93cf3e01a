package sqlinline

const QInsertNotification = `--sql e5a7c9d1-2f4b-4c6e-a09f-1d3f5b7d9e17
insert into notifications(id, user_id, title, message, is_read, created_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::text, false, now())
returning id;
`

const QListNotificationsByUser = `--sql 07b9e1f3-4a6d-4e8a-c21b-3f5d7b9e1a18
select id, user_id, title, message, is_read, created_at
from notifications
where user_id = $1::uuid
order by created_at desc
limit $2::int;
`

const QMarkNotificationsRead = `--sql 29d1a3b5-6c8f-4a0c-e43d-5b7f9d1e3a19
update notifications
set is_read = true
where user_id = $1::uuid and is_read = false;
`
