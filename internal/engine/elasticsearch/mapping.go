package elasticsearch

// DefaultIndexName is the default Elasticsearch index holding one
// denormalized document per upstream entity.
const DefaultIndexName = "global_search"

// buildIndexMapping returns the full JSON mapping for the global search
// index. The searchable_text field carries two analyzers: an edge_ngram
// autocomplete analyzer on the .autocomplete subfield for "type two
// characters, get suggestions", and the standard analyzer on the main field
// for ranked full-text matching. Identifiers are keyword-typed so exact and
// wildcard lookups (VIN, account ids) bypass tokenization entirely.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "autocomplete_analyzer": {
          "type": "custom",
          "tokenizer": "autocomplete_tokenizer",
          "filter": ["lowercase"]
        },
        "autocomplete_search": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase"]
        }
      },
      "tokenizer": {
        "autocomplete_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 2,
          "max_gram": 10,
          "token_chars": ["letter", "digit"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "entity_type":     { "type": "keyword" },
      "entity_id":       { "type": "keyword" },
      "status":          { "type": "keyword" },
      "searchable_text": { "type": "text", "analyzer": "standard", "fields": { "autocomplete": { "type": "text", "analyzer": "autocomplete_analyzer", "search_analyzer": "autocomplete_search" } } },
      "permissions": {
        "properties": {
          "seller_ids":  { "type": "keyword" },
          "buyer_ids":   { "type": "keyword" },
          "carrier_ids": { "type": "keyword" }
        }
      },
      "vin":             { "type": "keyword" },
      "seller_id":       { "type": "keyword" },
      "buyer_id":        { "type": "keyword" },
      "carrier_id":      { "type": "keyword" },
      "offer_id":        { "type": "keyword" },
      "purchase_id":     { "type": "keyword" },
      "make":            { "type": "keyword" },
      "model":           { "type": "keyword" },
      "condition":       { "type": "keyword" },
      "payment_method":  { "type": "keyword" },
      "location":        { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "pickup_location":   { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "delivery_location": { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "year":            { "type": "integer" },
      "price":           { "type": "double" },
      "purchase_price":  { "type": "double" },
      "transport_cost":  { "type": "double" },
      "created_at":      { "type": "date" },
      "updated_at":      { "type": "date" },
      "scheduled_pickup_date":   { "type": "date" },
      "scheduled_delivery_date": { "type": "date" }
    }
  }
}`
}
