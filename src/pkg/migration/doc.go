// Package migration 让磁盘上的数据库结构与代码中声明的结构保持一致
//
// 迁移流程：
//
// 1. 比较声明结构与实际结构，没有差异时不做任何写入
// 2. 磁盘上不存在的表直接创建
// 3. 需要修改已有表时，先在 Executor.Snapshot 内把数据库文件复制到备份目录
// 4. 写入锁文件，记录本次迁移的备份路径
// 5. 逐表：补列、按改名规则回填数据、改名为 <表>_TMP、按声明结构重建、复制数据、删除临时表
// 6. 全部成功后删除锁文件并写入 migration_history
//
// 进程在第 5 步中断时锁文件会保留下来，下次启动前调用 CheckAndRecover
// 可以从锁文件记录的备份恢复数据库。
//
// 基本使用示例：
//
//	m, err := migration.NewMigrator(exec, schema.NewIntrospector(exec), migration.Config{
//	    Catalog:   catalog,
//	    BackupDir: "/srv/watcher-go/db",
//	})
//	result, err := m.Run(ctx)
//
// 程序自身的记录表（system_meta、migration_history）使用 golang-migrate 的版本化
// SQL 文件管理，见 ApplyBookkeeping。
package migration
