/*
Package registry maps entity types to their storage layout.

Collection Registry:
Associates a Go type with the collection (MongoDB) or entity type (DynamoDB)
it is stored under:

	registry.RegisterCollection[User]("users")
	name, err := registry.CollectionName[User]()

Index Map Registry:
Associates a Go type with DynamoDB key templates. Macros are replaced with
document field values when an item is written:

	registry.RegisterIndexMap[User](map[string]string{
	    "PK":     "USER#{_id}",
	    "SK":     "USER",
	    "GSI1PK": "EMAIL#{email}",
	})

Types without an index map use "<collection>#{_id}" / "<collection>".

The registry is thread-safe and should be populated during initialization,
typically in init() functions.
*/
package registry
