// Package config provides configuration parsing for appsync clients.
//
// The configuration is stored in appsync.json in the working directory.
// Environment variables (optionally loaded from a .env file) override
// file values.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "url": "http://localhost:5151",
//	    "graphqlPath": "/graphql",
//	    "eventsPath": "/events"
//	  },
//	  "router": {
//	    "pendingInterval": "16ms",
//	    "queryTTL": "5m",
//	    "queryMaxEntries": 32
//	  },
//	  "session": {
//	    "reconnectDelay": "2s"
//	  },
//	  "telemetry": {
//	    "metricsNamespace": "appsync",
//	    "tracerName": "appsync"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Server:", cfg.Server.URL)
package config
