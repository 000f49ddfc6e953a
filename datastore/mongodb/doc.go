/*
Package mongodb implements the datastore contracts on the official MongoDB
Go driver.

Sessions are driver sessions; an operation joins one by running under
mongo.NewSessionContext. Multi-document transactions require a replica set
or sharded cluster.

	conn, err := mongodb.Connect(ctx, "mongodb://localhost:27017/?replicaSet=rs0", "app")
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	users := docstore.NewService[User](mongodb.NewCollection[User](conn, "users"))
*/
package mongodb
