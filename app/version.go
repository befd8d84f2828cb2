package app

// Version is set at build time with -ldflags "-X github.com/imfrisiv/mail-backend/app.Version=..."
var Version = "dev"
