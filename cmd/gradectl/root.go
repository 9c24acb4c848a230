package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"grading_sync_v1/internal/app"
	"grading_sync_v1/internal/config"
	"grading_sync_v1/internal/model"
	"grading_sync_v1/pkg/database"
)

// containerFactory 按配置构建依赖，测试时替换为 sqlite
type containerFactory func(cfg *config.Config) (*app.Container, error)

func openContainer(cfg *config.Config) (*app.Container, error) {
	db, err := app.Open(cfg)
	if err != nil {
		return nil, err
	}
	return app.NewContainer(cfg, db), nil
}

// commandContext 子命令共享的配置与依赖，首次使用时初始化
type commandContext struct {
	configPath *string
	factory    containerFactory

	once      sync.Once
	container *app.Container
	err       error
}

func newCommandContext(configPath *string, factory containerFactory) *commandContext {
	if factory == nil {
		factory = openContainer
	}
	return &commandContext{configPath: configPath, factory: factory}
}

func (c *commandContext) ensureContainer() (*app.Container, error) {
	c.once.Do(func() {
		cfg, err := config.Load(*c.configPath)
		if err != nil {
			c.err = err
			return
		}
		c.container, c.err = c.factory(cfg)
	})
	return c.container, c.err
}

func newRootCommand(factory containerFactory) *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag, factory)

	rootCmd := &cobra.Command{
		Use:           "gradectl",
		Short:         "送评进度同步运维工具",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newSyncAllCommand(ctx))
	rootCmd.AddCommand(newPortalTokenCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))

	return rootCmd
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "自动建表",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.ensureContainer()
			if err != nil {
				return err
			}
			// 打开时已迁移，这里重复执行一次保证幂等
			if err := database.Migrate(c.DB, model.AllModels()...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已迁移 %d 张表\n", len(model.AllModels()))
			return nil
		},
	}
}
