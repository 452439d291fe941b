// Package main is the entry point for DromeBoard.
//
//	@title			DromeBoard API
//	@version		1.0
//	@description	Dashboard backend for Drome units: upload results, browse metrics and manage units and users.
//
//	@host			localhost:8080
//	@BasePath		/api
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token (format: "Bearer {token}")
package main

func main() {
	Execute()
}
