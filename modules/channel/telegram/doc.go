// Package telegram implements the Telegram Bot API protocol client for
// tgrelay.
//
// The module registers itself as "channel.telegram" and exposes a
// protocol.Client as the "protocol.client" service. Updates arrive either
// by long polling or through the gateway webhook dispatcher and are
// published on the notification bus as protocol events:
//
//   - every supported message becomes a MessageReceivedEvent
//   - group membership and title changes become ChatChangedEvents
//   - media payloads requested by a relay are streamed as MediaChunkEvents
//   - successful sends produce a DeliveryStatusEvent
//
// The Bot API exposes neither read receipts nor remote typing, so those
// events are never published. API access goes through gopkg.in/telebot.v3.
package telegram
