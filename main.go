// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"os"

	"github.com/mailpix/mailpix/config"
	"github.com/mailpix/mailpix/domain"
	"github.com/mailpix/mailpix/extract"
	"github.com/mailpix/mailpix/imapconnection"
	"github.com/mailpix/mailpix/log"
	"github.com/mailpix/mailpix/persistence"
	"github.com/mailpix/mailpix/photos"
	"github.com/mailpix/mailpix/pipeline"
	"github.com/mailpix/mailpix/scheduler"

	"github.com/sirupsen/logrus"
)

func main() {
	configFile := flag.String("config", "config.toml", "path to the configuration file")
	daysBack := flag.Int("days-back", 0, "override the lookback window in days")
	authorize := flag.Bool("authorize", false, "run the one-time photo library authorization and exit")
	flag.Parse()

	log.InitLogging("debug")
	logger := log.Logger(log.LOG_MAIN)

	conf, err := config.ReadConfig(*configFile)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not load config")
	}

	if conf.Loglevel != nil {
		log.SetLogLevel(*conf.Loglevel)
	}

	if *daysBack <= 0 {
		*daysBack = conf.DaysBack
	}

	ctx := context.Background()
	auth, err := photos.NewAuthenticator(conf.CredentialsFile, conf.TokenFile)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not load photo library credentials")
	}

	if *authorize {
		err = auth.Authorize(ctx)
		if err != nil {
			logger.WithField("error", err).Fatal("Authorization failed")
		}
		return
	}

	err = os.MkdirAll(conf.StagingDir, 0755)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not create staging directory")
	}

	p, err := persistence.NewPersistence(conf.Database)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not connect to database")
	}
	defer p.Close()

	httpClient, err := auth.Client(ctx)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not build authenticated photo library client")
	}
	uploader := photos.NewPhotos(httpClient, photos.DefaultBaseUrl)

	dialer := func() (domain.MailSession, error) {
		return imapconnection.NewImapConnection(conf.ImapHost, conf.User, conf.Password, conf.ImapNoTLS)
	}

	pipe, err := pipeline.NewPipeline(
		p,
		dialer,
		extract.NewAttachmentExtractor(conf.AllowedExtensions, conf.MaxFileSize(), conf.StagingDir),
		extract.NewEmbeddedImageExtractor(extract.NewHttpImageFetcher(), conf.AllowedExtensions, conf.MaxFileSize(), conf.StagingDir),
		pipeline.Filter(conf.SenderAddress, conf.SubjectPattern),
		pipeline.TargetWeekday(conf.Weekday()),
		pipeline.SkipProcessed(),
	)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not build pipeline")
	}

	job := func() error {
		defer auth.PersistToken()
		return processOnce(logger, pipe, uploader, conf.AlbumName, *daysBack)
	}

	if conf.Schedule != "" {
		err = scheduler.NewScheduler(job).Start(conf.Schedule)
		if err != nil {
			logger.WithField("error", err).Fatal("Could not start scheduler")
		}
		return
	}

	err = job()
	if err != nil {
		logger.WithField("error", err).Fatal("Processing photo mails failed")
	}
}

// processOnce runs the extraction pipeline once and pushes the staged files
// into the album. Staged files are only deleted after a successful attach.
func processOnce(logger *logrus.Logger, pipe *pipeline.Pipeline, uploader domain.Uploader, albumName string, daysBack int) error {
	files, err := pipe.Run(daysBack)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		logger.Info("No new photos extracted")
		return nil
	}

	logger.WithFields(logrus.Fields{"files": len(files), "album": albumName}).Info("Uploading extracted photos")

	albumId, err := uploader.EnsureAlbum(albumName)
	if err != nil {
		return err
	}

	tokens := []string{}
	uploaded := map[string]string{}
	for _, f := range files {
		token, err := uploader.Upload(f.LocalPath)
		if err != nil {
			logger.WithFields(logrus.Fields{"file": f.LocalPath, "error": err}).Error("Upload failed, keeping staged file")
			continue
		}
		tokens = append(tokens, token)
		uploaded[token] = f.LocalPath
	}

	if len(tokens) == 0 {
		logger.Warn("No files uploaded")
		return nil
	}

	results, err := uploader.Attach(albumId, tokens)
	if err != nil {
		return err
	}

	attached := 0
	for _, r := range results {
		if r.Error != nil {
			logger.WithFields(logrus.Fields{"file": uploaded[r.Token], "error": r.Error}).Error("Could not attach upload to album, keeping staged file")
			continue
		}

		attached++
		path := uploaded[r.Token]
		err = os.Remove(path)
		if err != nil {
			logger.WithFields(logrus.Fields{"file": path, "error": err}).Warn("Could not clean up staged file")
		}
	}

	logger.WithFields(logrus.Fields{"extracted": len(files), "uploaded": len(tokens), "attached": attached}).Info("Finished photo mail processing")
	return nil
}
