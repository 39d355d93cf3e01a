package sqlinline

const QSelectContributionByID = `--sql 0b2d4f6a-8c1e-4a3b-9d5f-7e9a1c3b5d10
select id, title, description, target_amount, collected_amount, start_date, end_date, status, created_at, updated_at
from contributions
where id = $1::uuid;
`

const QListContributions = `--sql 2c4e6a8b-0d3f-4b5c-ae7d-9f1b3d5e7a11
select id, title, description, target_amount, collected_amount, start_date, end_date, status, created_at, updated_at
from contributions
order by created_at desc;
`

const QListContributionIDsWithTransactions = `--sql 4d6f8b0c-2e5a-4c7d-b09e-1a3c5e7f9b12
select distinct contribution_id
from transactions
where contribution_id is not null;
`

// Single atomic increment; concurrent callers accumulate.
const QApplyCollectedDelta = `--sql 6e8a0c2d-4f7b-4d9e-c21f-3b5d7f9a1c13
update contributions
set collected_amount = collected_amount + $2::bigint, updated_at = now()
where id = $1::uuid;
`

const QSelectCollectedAmountForUpdate = `--sql 8f0b2d4e-6a9c-4e1f-d43a-5c7e9b1d3f14
select collected_amount
from contributions
where id = $1::uuid
for update;
`

const QDerivedCollectedAmount = `--sql a1c3e5f7-8b0d-4f2a-e65b-7d9f1b3d5e15
select coalesce(sum(case type when 'PAYMENT' then amount when 'REFUND' then -amount else 0 end), 0)
from transactions
where contribution_id = $1::uuid and status = 'COMPLETED';
`

const QSetCollectedAmount = `--sql c3e5a7b9-0d2f-4a4c-f87d-9f1b3d5e7a16
update contributions
set collected_amount = $2::bigint, updated_at = now()
where id = $1::uuid;
`
