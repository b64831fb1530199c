package main

import (
	"log"
	"os"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"gigchat/client"
)

type config struct {
	ServerURL string `env:"SERVER_URL,default=http://localhost:8080"`
	Email     string `env:"CHAT_EMAIL,required=true"`
	Password  string `env:"CHAT_PASSWORD,required=true"`
}

// main runs the terminal client: it lists the account's rooms and then
// follows all of them live until interrupted.
func main() {
	_ = godotenv.Load()
	var cfg config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if err := client.Run(client.Config{
		ServerURL: cfg.ServerURL,
		Email:     cfg.Email,
		Password:  cfg.Password,
	}); err != nil {
		log.Printf("Client stopped: %v", err)
		os.Exit(1)
	}
}
