/*
Package config loads docstore settings.

Sources, lowest precedence first: Default(), a YAML file, then environment
variables prefixed with DOCSTORE_ (a .env file is read into the environment
first). For example:

	backend: mongodb
	mongo:
	  uri: mongodb://localhost:27017/?replicaSet=rs0
	  database: app
	log:
	  level: debug

is equivalent to DOCSTORE_BACKEND=mongodb, DOCSTORE_MONGO_URI=...,
DOCSTORE_MONGO_DATABASE=app and DOCSTORE_LOG_LEVEL=debug.
*/
package config
