package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "pricegate"
)

// Ключи для Sets (состояние)
const (
	RedisKeyFrozenSKUs = RedisNamespace + ":sku:frozen_set"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanFreezeSignal — сигнал заморозки автоцен по SKU, формат "sku:on|off".
	RedisChanFreezeSignal = RedisNamespace + ":sku:freeze-signal"

	// BrokerChannelPrefix — префикс каналов, через которые шина гоняет топики.
	BrokerChannelPrefix = RedisNamespace + ":bus:"
)

// Топики шины. Свободные строки, сегментированные точками по конвенции;
// подписка — только по точному совпадению.
const (
	TopicMarketTick       = "market.tick"
	TopicProposalReceived = "price.proposal.received"
	TopicDecisionRecorded = "price.decision.recorded"
)
