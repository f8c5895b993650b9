/*
Copyright 2024 OPTRIXTRADES Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package bot

import (
	"embed"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/config"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/database"
	redis_db "github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/redis-db"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/search"
)

// Bot is the funnel service: it owns the follow-up scheduler, the
// verification decision engine, and their collaborators.
type Bot struct {
	queue      *Queue
	search     *search.TypesenseClient
	redis      redis.UniversalClient
	datasource database.IDataSource
	scheduler  *Scheduler
	messenger  Messenger
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewBot initializes the service with the provided datasource. It connects
// Redis, the task queue, and the search client from configuration, and wires
// the scheduler over the Telegram messenger.
func NewBot(db database.IDataSource) (*Bot, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	newSearch := search.NewTypesenseClient(configuration.TypeSenseKey, []string{configuration.TypeSense.Dns})
	messenger := NewTelegramClient()

	newBot := &Bot{
		datasource: db,
		queue:      newQueue,
		redis:      redisClient.Client(),
		search:     newSearch,
		scheduler:  NewScheduler(db, messenger),
		messenger:  messenger,
	}
	newBot.scheduler.notify = newBot.SendWebhookEvent
	return newBot, nil
}

// Scheduler exposes the follow-up scheduler for lifecycle control (Recover,
// Start, Stop) by the process entrypoints.
func (b *Bot) Scheduler() *Scheduler {
	return b.scheduler
}
