/*
Package ddb implements the datastore contracts on a single DynamoDB table.

Every document is one item. Keys come from an index map of macro templates
expanded against the document's fields; the default layout is

	PK         = "<collection>#{_id}"
	SK         = "<collection>"
	EntityType = "<collection>"

and a type can register its own templates, including extra GSI attributes:

	registry.RegisterIndexMap[User](map[string]string{
	    "PK":     "USER#{_id}",
	    "SK":     "PROFILE",
	    "GSI1PK": "EMAIL#{email}",
	})

The document body is stored BSON-encoded in the Document attribute so every
value round-trips with its BSON type. Reads scan the collection's EntityType
with paging and retries on throttling, then filter, sort and aggregate in
memory.

Sessions buffer writes in an overlay that reads inside the transaction see.
Commit sends the whole overlay as one TransactWriteItems call, so a
transaction is limited to 100 item writes; a cancelled transaction surfaces
as a ConditionFailedError.
*/
package ddb
