// Package wiring registers every command and query handler on the buses and wraps
// them in the standard middleware chain.
package wiring

import (
	"log/slog"
	"time"

	"mujthriftz/internal/app/commands"
	"mujthriftz/internal/app/dto"
	catalogapp "mujthriftz/internal/app/handlers/catalog"
	chatapp "mujthriftz/internal/app/handlers/chat"
	profilesapp "mujthriftz/internal/app/handlers/profiles"
	supportapp "mujthriftz/internal/app/handlers/support"
	"mujthriftz/internal/app/middleware"
	"mujthriftz/internal/app/outbox"
	"mujthriftz/internal/app/policies"
	"mujthriftz/internal/app/queries"
	domaincatalog "mujthriftz/internal/domain/catalog"
	domainchat "mujthriftz/internal/domain/chat"
	domainprofile "mujthriftz/internal/domain/profile"
	domainuser "mujthriftz/internal/domain/user"
)

type Deps struct {
	Chat     domainchat.Repository
	Catalog  domaincatalog.Repository
	Users    domainuser.Repository
	Profiles domainprofile.Repository

	Outbox    outbox.Outbox
	Publisher policies.Publisher
	Assets    policies.AssetStorage
	Notifier  policies.Notifier
	Metrics   chatapp.Metrics

	Logger *slog.Logger
	Now    func() time.Time
}

type Buses struct {
	Commands commands.Bus
	Queries  queries.Bus
	// CommandKeys lists every registered command, sorted.
	CommandKeys []string
}

// Build panics when Outbox is nil; every command flushes it on success.
func Build(d Deps) Buses {
	cmdBus := commands.NewInMemoryBus()
	commands.RegisterHandler[chatapp.StartConversationCommand, dto.Conversation](cmdBus, &chatapp.StartConversationHandler{
		Repo: d.Chat, Outbox: d.Outbox, Metrics: d.Metrics, Logger: d.Logger, Now: d.Now,
	})
	commands.RegisterHandler[chatapp.SendMessageCommand, dto.ChatMessage](cmdBus, &chatapp.SendMessageHandler{
		Repo: d.Chat, Publisher: d.Publisher, Outbox: d.Outbox, Metrics: d.Metrics, Logger: d.Logger, Now: d.Now,
	})
	commands.RegisterHandler[chatapp.SetTypingCommand, dto.TypingEvent](cmdBus, &chatapp.SetTypingHandler{Repo: d.Chat, Publisher: d.Publisher, Logger: d.Logger})
	commands.RegisterHandler[chatapp.MarkReadCommand, dto.MarkReadResult](cmdBus, &chatapp.MarkReadHandler{
		Repo: d.Chat, Publisher: d.Publisher, Outbox: d.Outbox, Logger: d.Logger, Now: d.Now,
	})
	commands.RegisterHandler[catalogapp.CreateDocumentCommand, dto.Document](cmdBus, &catalogapp.CreateDocumentHandler{Repo: d.Catalog, Outbox: d.Outbox, Logger: d.Logger, Now: d.Now})
	commands.RegisterHandler[catalogapp.UpdateDocumentCommand, dto.Document](cmdBus, &catalogapp.UpdateDocumentHandler{Repo: d.Catalog, Outbox: d.Outbox, Logger: d.Logger, Now: d.Now})
	commands.RegisterHandler[catalogapp.DeleteDocumentCommand, dto.Document](cmdBus, &catalogapp.DeleteDocumentHandler{Repo: d.Catalog, Outbox: d.Outbox, Logger: d.Logger, Now: d.Now})
	commands.RegisterHandler[catalogapp.UploadAssetCommand, dto.Asset](cmdBus, &catalogapp.UploadAssetHandler{Repo: d.Catalog, Storage: d.Assets, Logger: d.Logger, Now: d.Now})
	commands.RegisterHandler[profilesapp.UpdateProfileCommand, dto.Profile](cmdBus, &profilesapp.UpdateProfileHandler{Profiles: d.Profiles, Users: d.Users, Logger: d.Logger, Now: d.Now})
	mailer := &supportapp.MailHandler{Notifier: d.Notifier, Logger: d.Logger}
	commands.RegisterHandler(cmdBus, supportapp.ContactHandler(mailer))
	commands.RegisterHandler(cmdBus, supportapp.ReportHandler(mailer))

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[chatapp.ListMessagesQuery, []dto.ChatMessage](queryBus, &chatapp.ListMessagesHandler{Repo: d.Chat})
	queries.RegisterHandler[chatapp.ListConversationsQuery, []dto.Conversation](queryBus, &chatapp.ListConversationsHandler{Repo: d.Chat})
	queries.RegisterHandler[chatapp.UnreadCountsQuery, dto.UnreadCounts](queryBus, &chatapp.UnreadCountsHandler{Repo: d.Chat})
	queries.RegisterHandler[catalogapp.BrowseCatalogQuery, dto.DocumentList](queryBus, &catalogapp.BrowseCatalogHandler{Repo: d.Catalog})
	queries.RegisterHandler[catalogapp.GetDocumentQuery, dto.Document](queryBus, &catalogapp.GetDocumentHandler{Repo: d.Catalog})
	queries.RegisterHandler[catalogapp.ListMineQuery, dto.DocumentList](queryBus, &catalogapp.ListMineHandler{Repo: d.Catalog})
	queries.RegisterHandler[profilesapp.PublicUserQuery, dto.PublicUser](queryBus, &profilesapp.PublicUserHandler{Profiles: d.Profiles, Users: d.Users})
	queries.RegisterHandler[profilesapp.MyProfileQuery, dto.Profile](queryBus, &profilesapp.MyProfileHandler{Profiles: d.Profiles})

	return Buses{
		Commands: middleware.ChainCommands(
			cmdBus,
			middleware.Logging(d.Logger),
			middleware.RequireActor(),
			middleware.Validation(),
			middleware.OutboxFlush(d.Outbox),
		),
		Queries:     middleware.ChainQueries(queryBus, middleware.QueryValidation()),
		CommandKeys: cmdBus.Keys(),
	}
}
