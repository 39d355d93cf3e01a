package sqlinline

const QInsertTransaction = `--sql 3f1f2a58-8f0e-4f0a-9a2e-0c5b9d1a6f01
insert into transactions(id, user_id, contribution_id, amount, type, status, order_ref, payment_method, description, notes, created_at, updated_at)
values ($1::uuid, $2::uuid, nullif($3::text, '')::uuid, $4::bigint, $5::text, $6::text, $7::text, $8::text, $9::text, $10::text, $11::timestamptz, $11::timestamptz);
`

const QInsertPayment = `--sql 7c3d92a1-44be-4c5e-b7dd-2a5f0e8c9b02
insert into payments(id, transaction_id, user_id, contribution_id, amount, status, created_at, updated_at)
values ($1::uuid, $2::uuid, $3::uuid, nullif($4::text, '')::uuid, $5::bigint, $6::text, $7::timestamptz, $7::timestamptz);
`

const QSelectTransactionByID = `--sql b8a04c11-5c2e-4f7b-8a3f-6d9e1b2c4d03
select id, user_id, contribution_id, amount, type, status, order_ref, payment_method, description, notes, created_at, updated_at
from transactions
where id = $1::uuid;
`

const QSelectTransactionByOrderRef = `--sql 91d6e8f2-0a7b-4c3d-9e5f-8b1a2c3d4e04
select id, user_id, contribution_id, amount, type, status, order_ref, payment_method, description, notes, created_at, updated_at
from transactions
where order_ref = $1::text;
`

// Compare-and-set on status: zero rows means the row moved underneath
// the caller. payment_method and notes are preserved when the incoming
// value is empty.
const QUpdateTransactionStatusCAS = `--sql 5e2b7a9c-1d4f-4e8a-b6c3-9f0a1b2c3d05
update transactions
set status = $3::text,
    payment_method = coalesce(nullif($4::text, ''), payment_method),
    notes = coalesce(nullif($5::text, ''), notes),
    updated_at = now()
where id = $1::uuid and status = $2::text;
`

const QUpdatePaymentStatusForTransaction = `--sql a4c8e1b7-6f2d-4a9c-8e5b-0d3f1a2b4c06
update payments
set status = $2::text, updated_at = now()
where transaction_id = $1::uuid;
`

const QSelectPendingTransactionsBefore = `--sql d2f4a6c8-3e5b-4d7f-9a1c-7b8e0f2a3c07
select id, user_id, contribution_id, amount, type, status, order_ref, payment_method, description, notes, created_at, updated_at
from transactions
where status = 'PENDING' and created_at < $1::timestamptz
order by created_at asc
limit $2::int;
`

const QListTransactions = `--sql e7b9c2d4-8a1f-4b6e-a3d5-1c0f2e4b6d08
select id, user_id, contribution_id, amount, type, status, order_ref, payment_method, description, notes, created_at, updated_at
from transactions
where (nullif($1::text, '') is null or user_id = $1::uuid)
  and (nullif($2::text, '') is null or contribution_id = $2::uuid)
  and (nullif($3::text, '') is null or status = $3::text)
  and (nullif($4::text, '') is null or type = $4::text)
  and (nullif($5::text, '') is null or order_ref = $5::text)
  and ($6::timestamptz is null or created_at >= $6::timestamptz)
  and ($7::timestamptz is null or created_at <= $7::timestamptz)
order by created_at desc
limit $8::int offset $9::int;
`

const QCountTransactions = `--sql f1a3b5c7-9d2e-4f8a-b6c0-3e5d7f9a1b09
select count(*)
from transactions
where (nullif($1::text, '') is null or user_id = $1::uuid)
  and (nullif($2::text, '') is null or contribution_id = $2::uuid)
  and (nullif($3::text, '') is null or status = $3::text)
  and (nullif($4::text, '') is null or type = $4::text)
  and (nullif($5::text, '') is null or order_ref = $5::text)
  and ($6::timestamptz is null or created_at >= $6::timestamptz)
  and ($7::timestamptz is null or created_at <= $7::timestamptz);
`
