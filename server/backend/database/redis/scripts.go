/*
 * Copyright 2026 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package redis

import goredis "github.com/redis/go-redis/v9"

// appendScript writes a log entry unless its sequence number is taken.
//
// KEYS: payloads, created, rooms
// ARGV: seq, payload, created at in unix nanoseconds, room key
var appendScript = goredis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
redis.call('SADD', KEYS[3], ARGV[4])
return 1
`)

// compactScript replaces the snapshot and deletes the folded log entries.
//
// KEYS: snapshot, payloads, created, rooms
// ARGV: seq, state, state vector, text, size, created at, room key
var compactScript = goredis.NewScript(`
redis.call('HSET', KEYS[1],
	'seq', ARGV[1],
	'state', ARGV[2],
	'state_vector', ARGV[3],
	'text', ARGV[4],
	'size', ARGV[5],
	'created_at', ARGV[6])
local seq = tonumber(ARGV[1])
for _, field in ipairs(redis.call('HKEYS', KEYS[2])) do
	if tonumber(field) <= seq then
		redis.call('HDEL', KEYS[2], field)
		redis.call('HDEL', KEYS[3], field)
	end
end
redis.call('SADD', KEYS[4], ARGV[7])
return 1
`)
