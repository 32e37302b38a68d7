package matchmaker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// The scripts read and write mm:request:* keys they derive from ARGV, so they
// assume a single Redis node (or one hash slot); they are not Cluster-safe.
//
// key layout:
//
//	zset: mm:pool               -> member userId, score = insertion sequence
//	str : mm:pool:seq           -> sequence counter
//	str : mm:request:{userId}   -> MatchRequest JSON (optional TTL)
const (
	poolKey       = "mm:pool"
	poolSeqKey    = "mm:pool:seq"
	requestPrefix = "mm:request:"
)

func requestKey(userID string) string {
	return requestPrefix + userID
}

// KEYS[1] = pool zset, KEYS[2] = sequence counter
// ARGV[1] = request JSON, ARGV[2] = request key prefix, ARGV[3] = "1" to replace, ARGV[4] = entry TTL in ms (0 = none)
// returns {status, matchedJSON, evictedRequestId}; status is "matched", "queued" or "conflict"
var matchScript = redis.NewScript(`
local function intersects(a, b)
  local seen = {}
  for _, v in ipairs(a) do seen[v] = true end
  for _, v in ipairs(b) do
    if seen[v] then return true end
  end
  return false
end

local function compatible(a, b)
  if a.userId == b.userId then return false end
  if not intersects(a.topics, b.topics) then return false end
  if not intersects(a.difficulties, b.difficulties) then return false end
  return a.minTime <= b.maxTime and b.minTime <= a.maxTime
end

local req = cjson.decode(ARGV[1])
local prefix = ARGV[2]
local uid = req.preference.userId
local evicted = ""

local prior = redis.call("GET", prefix .. uid)
if prior then
  if ARGV[3] ~= "1" then
    return {"conflict", "", ""}
  end
  evicted = cjson.decode(prior).requestId
  redis.call("DEL", prefix .. uid)
end
redis.call("ZREM", KEYS[1], uid)

local members = redis.call("ZRANGE", KEYS[1], 0, -1)
for _, member in ipairs(members) do
  local raw = redis.call("GET", prefix .. member)
  if not raw then
    redis.call("ZREM", KEYS[1], member)
  elseif compatible(cjson.decode(raw).preference, req.preference) then
    redis.call("ZREM", KEYS[1], member)
    redis.call("DEL", prefix .. member)
    return {"matched", raw, evicted}
  end
end

local seq = redis.call("INCR", KEYS[2])
redis.call("ZADD", KEYS[1], seq, uid)
local ttl = tonumber(ARGV[4])
if ttl and ttl > 0 then
  redis.call("SET", prefix .. uid, ARGV[1], "PX", ttl)
else
  redis.call("SET", prefix .. uid, ARGV[1])
end
return {"queued", "", evicted}
`)

// KEYS[1] = pool zset
// ARGV[1] = userId, ARGV[2] = request key prefix, ARGV[3] = expected requestId ("" = any)
// returns the removed requestId, or "" when nothing was removed
var removeScript = redis.NewScript(`
local key = ARGV[2] .. ARGV[1]
local raw = redis.call("GET", key)
if not raw then
  redis.call("ZREM", KEYS[1], ARGV[1])
  return ""
end
local id = cjson.decode(raw).requestId
if ARGV[3] ~= "" and id ~= ARGV[3] then
  return ""
end
redis.call("DEL", key)
redis.call("ZREM", KEYS[1], ARGV[1])
return id
`)

// expiryMargin keeps a payload alive past its owner's deadline long enough for
// the timer to remove it itself.
const expiryMargin = 30 * time.Second

type redisPool struct {
	rdb      *redis.Client
	entryTTL time.Duration
}

// NewRedisPool returns a Pool whose primitives run as Lua scripts, so they are
// atomic across every instance sharing rdb. entryTTL bounds how long an
// orphaned entry (its owner crashed) can linger; zero disables expiry.
func NewRedisPool(rdb *redis.Client, entryTTL time.Duration) Pool {
	return &redisPool{rdb: rdb, entryTTL: entryTTL}
}

func (r *redisPool) MatchOrEnqueue(ctx context.Context, req MatchRequest, replace bool) (MatchResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return MatchResult{}, fmt.Errorf("encode match request: %w", err)
	}
	flag := "0"
	if replace {
		flag = "1"
	}
	vals, err := matchScript.Run(ctx, r.rdb, []string{poolKey, poolSeqKey},
		payload, requestPrefix, flag, r.ttlFor(req).Milliseconds()).StringSlice()
	if err != nil {
		return MatchResult{}, fmt.Errorf("%w: match-or-enqueue: %w", ErrPoolUnavailable, err)
	}
	if len(vals) != 3 {
		return MatchResult{}, fmt.Errorf("%w: unexpected script reply %v", ErrPoolUnavailable, vals)
	}

	res := MatchResult{Evicted: vals[2]}
	switch vals[0] {
	case "conflict":
		return MatchResult{}, ErrExistingPendingRequest
	case "matched":
		var matched MatchRequest
		if err := json.Unmarshal([]byte(vals[1]), &matched); err != nil {
			return res, fmt.Errorf("decode matched entry: %w", err)
		}
		res.Matched = &matched
	}
	return res, nil
}

// ttlFor never lets a payload expire while its owner may still be waiting.
func (r *redisPool) ttlFor(req MatchRequest) time.Duration {
	if r.entryTTL <= 0 || req.Deadline.IsZero() {
		return r.entryTTL
	}
	return max(r.entryTTL, time.Until(req.Deadline)+expiryMargin)
}

func (r *redisPool) Remove(ctx context.Context, userID string) (string, bool, error) {
	id, err := r.remove(ctx, userID, "")
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

func (r *redisPool) RemoveRequest(ctx context.Context, userID, requestID string) (bool, error) {
	id, err := r.remove(ctx, userID, requestID)
	return id != "", err
}

func (r *redisPool) remove(ctx context.Context, userID, requestID string) (string, error) {
	id, err := removeScript.Run(ctx, r.rdb, []string{poolKey}, userID, requestPrefix, requestID).Text()
	if err != nil {
		return "", fmt.Errorf("%w: remove %s: %w", ErrPoolUnavailable, userID, err)
	}
	return id, nil
}

func (r *redisPool) Count(ctx context.Context) (int64, error) {
	n, err := r.rdb.ZCard(ctx, poolKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrPoolUnavailable, err)
	}
	return n, nil
}
