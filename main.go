package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"blog_visual_assistant/config"
	"blog_visual_assistant/generator"
	"blog_visual_assistant/search"
	"blog_visual_assistant/server"
	"blog_visual_assistant/settings"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	configPath := flag.String("config", "config/config.json", "path to config.json")
	addr := flag.String("addr", "", "http listen address (overrides config.server_addr)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	llm, img, err := buildClients(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	agent, err := generator.NewAgent(llm, img)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	searchBase := ""
	if cfg.Search != nil {
		searchBase = cfg.Search.BaseURL
	}
	searcher := search.New(searchBase, nil)

	store, err := settings.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer store.Close()

	srv, err := server.New(agent, searcher, store)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	listen := cfg.ServerAddr
	if *addr != "" {
		listen = *addr
	}
	if listen == "" {
		listen = ":8080"
	}
	log.Printf("Starting web server on %s", listen)
	if err := http.ListenAndServe(listen, srv.Routes()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildClients(cfg config.Config) (generator.LLMClient, generator.ImageClient, error) {
	ls := &generator.LLMSettings{
		Provider:   cfg.LLM.Provider,
		Model:      cfg.LLM.Model,
		ImageModel: cfg.LLM.ImageModel,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
	}
	switch cfg.LLM.Provider {
	case "openai":
		llm, err := generator.NewOpenAILLMFromConfig(ls)
		if err != nil {
			return nil, nil, err
		}
		img, err := generator.NewOpenAIImageFromConfig(ls)
		if err != nil {
			return nil, nil, err
		}
		return llm, img, nil
	case "mock":
		// Local debugging without a model backend.
		return generator.MockLLM{}, generator.MockImage{}, nil
	default:
		return nil, nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}
