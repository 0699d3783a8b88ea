package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/ballpit/backend/internal/config"
	"github.com/ballpit/backend/internal/protocol"
	"github.com/ballpit/backend/internal/sim"
)

var rdbClient *redis.Client
var wsConfig *config.Config

func SetRedisClient(r *redis.Client, cfg *config.Config) {
	rdbClient = r
	wsConfig = cfg
}

// StartArenaEventSubscriber subscribes to the arena_events channel and fans
// events out to the right rooms and guests. Collision and lifecycle events
// travel through Redis so every instance's rooms hear them.
func StartArenaEventSubscriber(ctx context.Context) {
	if rdbClient == nil {
		log.Println("[WS] Redis client not set; arena event subscriber not started")
		return
	}

	pubsub := rdbClient.Subscribe(ctx, sim.ArenaEventsChannel)
	ch := pubsub.Channel()
	go func() {
		log.Println("[WS] arena_events subscriber started")
		for msg := range ch {
			var payload map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				log.Printf("[WS] invalid event payload: %v", err)
				continue
			}

			typeStr, _ := payload["type"].(string)
			arenaID, _ := payload["arena_id"].(string)

			switch typeStr {
			case "ball_collision":
				ballID, _ := payload["ball_id"].(string)
				otherID, _ := payload["other_id"].(string)
				speed, _ := payload["speed"].(float64)
				data, err := protocol.Encode(protocol.TypeBallCollision, protocol.BallCollisionData{
					ArenaID: arenaID,
					BallID:  ballID,
					OtherID: otherID,
					Speed:   speed,
				})
				if err != nil {
					continue
				}
				ArenaHub.broadcastRaw(arenaID, data)

			case "arena_assigned":
				// Quick-join result goes to the guest's connections, which are
				// not in the arena room yet.
				guestIDf, ok := payload["guest_id"].(float64)
				if !ok {
					log.Printf("[WS] arena_assigned without guest_id for arena %s", arenaID)
					continue
				}
				data, err := protocol.Encode(protocol.TypeArenaEvent, payload)
				if err != nil {
					continue
				}
				ArenaHub.SendToGuest(int(guestIDf), json.RawMessage(data))

			case "arena_closed":
				log.Printf("[WS] arena %s closed; notifying room", arenaID)
				data, err := protocol.Encode(protocol.TypeArenaEvent, payload)
				if err != nil {
					continue
				}
				ArenaHub.broadcastRaw(arenaID, data)

			default:
				// Spawns, removals, clears, resizes, creations: room-wide FYI.
				data, err := protocol.Encode(protocol.TypeArenaEvent, payload)
				if err != nil {
					continue
				}
				ArenaHub.broadcastRaw(arenaID, data)
			}
		}
	}()
}
