package main

import (
	"ShopHub/server"
)

func main() {
	s := server.NewServer()
	defer s.Shutdown()
	s.Start(s.Config.Server.Addr)
}
