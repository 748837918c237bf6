package redis

const (
	// putSummaryScript atomically stores a summary and its indexes
	putSummaryScript = `
local summary_key = KEYS[1]   -- chartexam:summary:{sessionID}
local user_zset = KEYS[2]     -- chartexam:summaries:user:{userID}
local end_zset = KEYS[3]      -- chartexam:summaries:by_end

local session_id = ARGV[1]
local payload = ARGV[2]
local end_score = ARGV[3]

redis.call('SET', summary_key, payload)
redis.call('ZADD', user_zset, end_score, session_id)
redis.call('ZADD', end_zset, end_score, session_id)

return 'OK'
`
)
