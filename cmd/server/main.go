package main

import "github.com/hakkacheyassin/ft-trans/server"

func main() {
	s := server.NewServer()
	addr := s.Config.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	s.Start(addr)
}
